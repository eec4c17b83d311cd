package fsclient

import (
	"context"
	"errors"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
)

// ErrKeyClientDestroyed is returned by KeyClient.WaitForReady after the handle has been destroyed.
var ErrKeyClientDestroyed = errors.New("key client has been destroyed")

// KeyClient is the handle of one user key. It is obtained from Client.MainClient or Client.Client.
//
// Every KeyClient of a Client shares the same definitions; the segment memberships, attributes and
// event listeners are specific to the key.
type KeyClient struct {
	key    string
	client *Client
	group  *synchronizer.KeyGroup
}

// Key returns the user key of this handle.
func (k *KeyClient) Key() string {
	return k.key
}

// AddEventListener subscribes to the SdkEvents of this key. Events delivered before the call are not
// replayed; use IsReady or Ready to check readiness.
//
// It is the caller's responsibility to consume values from the channel.
func (k *KeyClient) AddEventListener() <-chan interfaces.SdkEvent {
	return k.group.Events.AddListener()
}

// RemoveEventListener unsubscribes a channel returned by AddEventListener.
func (k *KeyClient) RemoveEventListener(ch <-chan interfaces.SdkEvent) {
	k.group.Events.RemoveListener(ch)
}

// IsReady returns true once definitions and this key's memberships have been fetched.
func (k *KeyClient) IsReady() bool {
	return k.group.Events.IsReady()
}

// Ready returns a channel that is closed when the key becomes ready.
func (k *KeyClient) Ready() <-chan struct{} {
	return k.group.Events.Ready()
}

// WaitForReady blocks until the key is ready, the timeout elapses, or the context is done.
func (k *KeyClient) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if k.client.facade.Get(k.key) != k.group {
		return ErrKeyClientDestroyed
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-k.group.Events.Ready():
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrInitializationTimeout
		}
		return ctx.Err()
	}
}

// SetAttribute stores an attribute of this key for use by an evaluation engine.
func (k *KeyClient) SetAttribute(name string, value interface{}) {
	k.group.Attributes.Set(name, value)
}

// SetAttributes stores several attributes at once.
func (k *KeyClient) SetAttributes(values map[string]interface{}) {
	k.group.Attributes.SetAll(values)
}

// GetAttribute returns a stored attribute.
func (k *KeyClient) GetAttribute(name string) (interface{}, bool) {
	return k.group.Attributes.Get(name)
}

// GetAttributes returns a copy of every stored attribute.
func (k *KeyClient) GetAttributes() map[string]interface{} {
	return k.group.Attributes.GetAll()
}

// RemoveAttribute deletes a stored attribute.
func (k *KeyClient) RemoveAttribute(name string) {
	k.group.Attributes.Remove(name)
}

// ClearAttributes deletes every stored attribute.
func (k *KeyClient) ClearAttributes() {
	k.group.Attributes.Clear()
}

// Segments returns the names of the segments this key belongs to, sorted.
func (k *KeyClient) Segments() []string {
	return copyNames(k.client.stores.Memberships.Get(k.key).MySegments.Names)
}

// LargeSegments returns the names of the large segments this key belongs to, sorted.
func (k *KeyClient) LargeSegments() []string {
	return copyNames(k.client.stores.Memberships.Get(k.key).MyLargeSegments.Names)
}

// IsInSegment returns true if the key belongs to the named segment or large segment.
func (k *KeyClient) IsInSegment(name string) bool {
	m := k.client.stores.Memberships.Get(k.key)
	return m.MySegments.Contains(name) || m.MyLargeSegments.Contains(name)
}

// Definition returns a copy of the stored definition with the given name.
func (k *KeyClient) Definition(name string) (interfaces.Definition, bool) {
	return k.client.Definition(name)
}

// DefinitionNames returns the names of every stored definition, sorted.
func (k *KeyClient) DefinitionNames() []string {
	return k.client.DefinitionNames()
}

// Destroy unregisters the key. Its synchronization stops and its event channels are closed. The main
// key's handle cannot be destroyed separately; close the Client instead.
func (k *KeyClient) Destroy() {
	if k == k.client.mainClient {
		k.client.loggers.Warn("The handle of the main user key cannot be destroyed; close the client instead")
		return
	}
	k.client.removeKey(k.key)
	k.client.stores.Memberships.Remove(k.key)
}

func copyNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	ret := make([]string, len(names))
	copy(ret, names)
	return ret
}

package mocks

import (
	"context"
	"sync"

	"github.com/flagsync/go-client-sdk/internal/storage"
)

// MembershipsRequest records one call to MockMembershipsFetcher.
type MembershipsRequest struct {
	Key  string
	Till int64
}

// MockMembershipsFetcher is a fetch.MembershipsFetcher that serves memberships from memory.
type MockMembershipsFetcher struct {
	// Requests receives every request made, if there is room in the channel.
	Requests chan MembershipsRequest
	byKey    map[string]storage.KeyMemberships
	err      error
	lock     sync.Mutex
}

// NewMockMembershipsFetcher creates a MockMembershipsFetcher that returns empty memberships for every
// key.
func NewMockMembershipsFetcher() *MockMembershipsFetcher {
	return &MockMembershipsFetcher{
		Requests: make(chan MembershipsRequest, 100),
		byKey:    make(map[string]storage.KeyMemberships),
	}
}

// SetMemberships sets the memberships returned for a key.
func (f *MockMembershipsFetcher) SetMemberships(key string, m storage.KeyMemberships) {
	f.lock.Lock()
	f.byKey[key] = m
	f.lock.Unlock()
}

// SetError makes subsequent requests fail. A nil error restores normal behavior.
func (f *MockMembershipsFetcher) SetError(err error) {
	f.lock.Lock()
	f.err = err
	f.lock.Unlock()
}

// FetchMemberships is a standard method of fetch.MembershipsFetcher.
func (f *MockMembershipsFetcher) FetchMemberships(
	ctx context.Context,
	key string,
	till int64,
) (storage.KeyMemberships, error) {
	select {
	case f.Requests <- MembershipsRequest{Key: key, Till: till}:
	default:
	}
	if err := ctx.Err(); err != nil {
		return storage.KeyMemberships{}, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return storage.KeyMemberships{}, f.err
	}
	return f.byKey[key], nil
}

// Package internal contains SDK implementation details that are shared between packages,
// but are not exposed to application code. The push, synchronizer, storage, and fetch subpackages
// contain the components of the synchronization engine.
package internal

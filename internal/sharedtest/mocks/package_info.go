// Package mocks contains mock implementations of SDK components for use in tests.
//
// It is in a separate package from sharedtest so that it can depend on internal component interfaces
// without creating import cycles.
package mocks

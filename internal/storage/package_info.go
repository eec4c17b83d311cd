// Package storage is an internal package containing the SDK's local copies of definitions, rule-based
// segments, and per-key segment memberships, along with their change numbers and the optional
// persistent cache they are loaded from at startup.
package storage

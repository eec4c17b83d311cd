// Package fsclient is the main package for the FlagSync client SDK.
//
// This package contains the types and methods for the SDK client ([Client]), the per-key handles it
// hands out ([KeyClient]), and its overall configuration ([Config]).
//
// The client keeps a local copy of the environment's flag definitions and rule-based segments, and of
// the segment memberships of every registered user key. It keeps that copy up to date through a
// streaming connection, falling back to periodic fetches while streaming is unavailable. Treatments
// are computed by an evaluation engine that reads the stored data through the KeyClient accessors.
//
// Subpackages in the same repository provide additional functionality for specific features of the
// client. Most applications that need to change any configuration settings will use the package
// [github.com/flagsync/go-client-sdk/fscomponents].
package fsclient

// Package interfaces contains types that are part of the public API of the flagsync client SDK but
// are not specific to any one component: service endpoints, synchronization status, client events,
// and the read-only shapes of feature flag definitions and rule-based segments.
//
// You will not need to refer to most of these types unless you are inspecting the client's
// synchronization status or consuming stored definitions from an evaluation engine.
package interfaces

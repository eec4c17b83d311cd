// Package fetch contains the HTTP clients that retrieve authoritative data from the SDK service:
// definitions and rule-based segments from the changes endpoint, and per-key memberships.
package fetch

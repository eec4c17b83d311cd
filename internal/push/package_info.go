// Package push is an internal package containing the SDK's real-time notification client: the SSE
// connection handler, the occupancy/control state keeper, and the push manager that orchestrates
// authentication, token refresh, and reconnection.
package push

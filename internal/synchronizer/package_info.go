// Package synchronizer keeps the local stores consistent with the server. It applies push
// notifications through per-resource update workers, runs periodic and forced fetches, switches
// between streaming and polling according to push status, and replicates memberships
// synchronization for every registered user key.
package synchronizer

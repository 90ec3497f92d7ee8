// Package provisioning implements landkeeper's provisioning registry
// (spec §4.5 "Provisioning Registry"): the set of gameserver processes
// available to host newly allocated lands, their heartbeats, and the
// pickServer policy the matchmaking worker uses to choose one.
//
// # Store layout (Redis)
//
//   - srv:<serverId> — server entry hash, TTL 90s, refreshed on every
//     heartbeat.
//
// # pickServer policy
//
// Round-robin among servers that advertise the requested land type and
// are not over their soft capacity, excluding any server whose last
// heartbeat is older than the 90s staleness cutoff; ties are broken by
// lastSeenAt ascending (the longest-idle server goes first).
package provisioning

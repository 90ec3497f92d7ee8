// Package cluster implements landkeeper's cluster directory (spec §4.5
// "Cluster Directory"): the userId -> nodeId lease that enforces
// single-login across a multi-node gateway deployment, plus the
// per-node inbox channel used to kick a player's stale connection when
// they log in on a different node.
//
// # Store layout (Redis)
//
//   - cd:user:<userId> — lease value is the holding node's id, TTL
//     config.ClusterDirectoryTTLSeconds (default 8s), renewed on every
//     session heartbeat.
//
// # Pub/sub
//
//   - cd:inbox:<nodeId> — per-node channel carrying kick messages that
//     name a userId. The matchmaking process hands each kick to a
//     callback that only logs it; the gameserver process does not
//     subscribe to its inbox, so no live connection is closed and
//     transport.CloseDuplicateLogin is not sent.
package cluster

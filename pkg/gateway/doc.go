// Package gateway implements landkeeper's realtime push surface (spec
// §4.5 "Realtime Gateway"): the /realtime WebSocket a client opens
// while waiting on a matchmaking ticket, and the Redis-backed
// matchmaking.Publisher that delivers a match.assigned envelope to it
// regardless of which gateway node accepted the original ticket.
//
// Two delivery paths exist, selected by
// config.UseNodeInboxForMatchAssigned:
//
//   - broadcast (default): every gateway node subscribes to the shared
//     "matchmaking:assigned" channel and forwards to a locally-held
//     connection if it has one.
//   - node-inbox: the publisher looks up which node holds a player's
//     cluster directory lease and publishes only to that node's
//     cd:inbox:<nodeId> channel, avoiding a fan-out to every node.
package gateway

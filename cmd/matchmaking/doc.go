// Package main implements the landkeeper matchmaking process: the
// ticket intake REST surface, the matching tick worker, the
// provisioning registry, the cluster directory, and the realtime
// gateway a client waits on between enqueue and match.assigned.
//
// A single binary serves all three roles; config.MatchmakingRole
// selects which of them actually run in a given process so "api" and
// "queue-worker" can be scaled independently, or "all" can run both in
// one process for small deployments.
package main

// Package matchmaking implements landkeeper's matchmaking control plane
// (spec §4.5): ticket intake, Redis-backed queue storage, the matching
// tick that groups tickets by strategy, and RS256 match-token minting
// that binds an allocated land to the players assigned to it.
//
// # Roles
//
// A matchmaking process takes on one of three roles (config.MatchmakingRole):
//
//   - api: serves the REST surface (enqueue/cancel/status/jwks) and
//     reads the store.
//   - queue-worker: runs Worker.Run, the matching tick that allocates
//     lands and publishes assignments.
//   - all: both, for single-process deployments.
//
// # Store layout (Redis)
//
//   - mm:ticket:<id> — ticket hash
//   - mm:queue:<queueKey> — set of queued ticket ids
//   - mm:group:<groupId> — reverse index for enqueue deduplication
//
// # Strategies
//
// Strategy.FindMatchableGroups partitions queued tickets into allocatable
// groups. The "default" strategy treats every ticket past minWaitMs as
// its own group; "fillGroup" aggregates tickets FIFO until the queueKey's
// derived group size is reached, relaxing to partial groups after
// relaxAfterMs.
package matchmaking

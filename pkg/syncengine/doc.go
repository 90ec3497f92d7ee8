// Package syncengine implements the declarative per-field state
// synchronization core: schema-driven snapshots, per-player diffs, and
// path-hash compression for the opcode wire encoding.
//
// A land's state tree is represented as a generic nested value (maps for
// aggregates and perPlayer mappings, slices for sequences/sets, and
// primitives for leaves) alongside a Schema describing each field's
// SyncPolicy. The engine never reflects over concrete Go structs; it walks
// the schema and the matching generic value in lockstep, mirroring the
// "ingest schema.json rather than reflect at runtime" design note.
package syncengine

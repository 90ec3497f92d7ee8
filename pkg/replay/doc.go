// Package replay records a land instance's deterministic RNG seed and
// action/event stream to disk and can later replay that stream against a
// fresh instance of the land's replay alias (spec §4.4 "replay alias",
// §9 open question (b) "RNG seed+tick persistence approach").
//
// Recordings are persisted with pkg/persistence's FileStore, so a crash
// mid-write never leaves a half-written recording behind. The transport
// adapter feeds a Recorder through its ActionRecorder hook; the admin
// surface's POST /admin/reevaluation/replay/start drives a Runner.
package replay

package syncengine

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

// UpdateKind names the three shapes a StateUpdate may take.
type UpdateKind int

const (
	NoChange UpdateKind = iota
	FirstSync
	Diff
)

func (k UpdateKind) String() string {
	switch k {
	case NoChange:
		return "noChange"
	case FirstSync:
		return "firstSync"
	case Diff:
		return "diff"
	default:
		return "unknown"
	}
}

// PatchOp names a JSON-Patch-shaped operation kind.
type PatchOp string

const (
	OpAdd     PatchOp = "add"
	OpReplace PatchOp = "replace"
	OpRemove  PatchOp = "remove"
)

// Patch is one JSON-Patch-shaped mutation against a player's previous
// projection. Path is always populated for the JSON encoding; PathHash and
// DynamicKeys are populated for the opcode encoding (spec §4.1 step 3).
type Patch struct {
	Op          PatchOp
	Path        string
	PathHash    uint32
	DynamicKeys []string
	Value       any `json:"value,omitempty"`
}

// StateUpdate is the diff-form output of a sync cycle for one target.
type StateUpdate struct {
	Kind    UpdateKind
	Patches []Patch
}

// StateSnapshot is the full-form projection of a state tree for one
// target (or the unfiltered server dump when target is nil).
type StateSnapshot = map[string]any

// Engine computes per-player snapshots and diffs for one land's state
// tree, per the declared Schema. One Engine instance is owned by exactly
// one LandKeeper; it is not safe for concurrent use from more than one
// goroutine at a time (callers must invoke it under the keeper's
// serialization guard, same as every other state mutation).
type Engine struct {
	schema *Schema
	log    *logrus.Entry

	// last holds the previously delivered projection per player, keyed by
	// PlayerID. The nil-target (server dump) projection is tracked under
	// the empty PlayerID("").
	last map[PlayerID]map[string]any
}

// NewEngine constructs an Engine bound to schema.
func NewEngine(schema *Schema) *Engine {
	return &Engine{
		schema: schema,
		log:    logrus.WithFields(logrus.Fields{"component": "syncengine", "landType": schema.LandType}),
		last:   make(map[PlayerID]map[string]any),
	}
}

// Schema returns the engine's bound schema.
func (e *Engine) Schema() *Schema {
	return e.schema
}

// Snapshot produces the full projected view of state for target (nil for
// an unfiltered server-side dump).
func (e *Engine) Snapshot(state map[string]any, target *PlayerID) StateSnapshot {
	return e.project(e.schema.Fields, state, target)
}

// project walks fields against state in declared order, applying each
// field's SyncPolicy (spec §4.1 "Snapshot").
func (e *Engine) project(fields []*FieldSchema, state map[string]any, target *PlayerID) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		value, present := state[f.Name]
		if !present {
			continue
		}
		projected, ok := e.projectField(f, value, target)
		if !ok {
			continue
		}
		out[f.Name] = projected
	}
	return out
}

func (e *Engine) projectField(f *FieldSchema, value any, target *PlayerID) (any, bool) {
	switch f.Policy {
	case PolicyBroadcast:
		if f.Kind == KindAggregate && len(f.Children) > 0 {
			nested, ok := value.(map[string]any)
			if !ok {
				return nil, false
			}
			return e.project(f.Children, nested, target), true
		}
		return value, true

	case PolicyServerOnly:
		return nil, false

	case PolicyPerPlayer:
		mapping, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		if target == nil {
			return mapping, true
		}
		entry, ok := mapping[string(*target)]
		if !ok {
			return nil, false
		}
		return map[string]any{string(*target): entry}, true

	case PolicyMasked:
		return e.callTransform(f, value, target)

	default:
		return nil, false
	}
}

// callTransform invokes a masked/custom transform, recovering a panic as a
// downgrade to serverOnly for this tick (spec §4.1 "Failure semantics").
func (e *Engine) callTransform(f *FieldSchema, value any, target *PlayerID) (projected any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"field": f.Name,
				"panic": r,
			}).Error("masked field transform panicked, downgrading to serverOnly for this tick")
			projected, ok = nil, false
		}
	}()
	return f.Transform(value, target)
}

// Diff computes the StateUpdate for target since the last call for that
// same target. The very first call for a given target always yields
// FirstSync (spec §4.1 step 4, and §8 "S receives one firstSync envelope
// before any diff envelope").
func (e *Engine) Diff(state map[string]any, target *PlayerID) *StateUpdate {
	key := PlayerID("")
	if target != nil {
		key = *target
	}

	current := e.Snapshot(state, target)
	prev, seen := e.last[key]
	e.last[key] = current

	if !seen {
		return &StateUpdate{Kind: FirstSync, Patches: snapshotToAddPatches(current, e.schema.Trie(), nil)}
	}

	patches := diffMaps(prev, current, e.schema.Trie(), nil)
	if len(patches) == 0 {
		return &StateUpdate{Kind: NoChange}
	}
	return &StateUpdate{Kind: Diff, Patches: patches}
}

// Forget drops tracked projection history for target, e.g. on leave, so a
// later rejoin is treated as a fresh FirstSync.
func (e *Engine) Forget(target PlayerID) {
	delete(e.last, target)
}

func snapshotToAddPatches(snapshot map[string]any, trie *PathTrie, prefix []string) []Patch {
	var patches []Patch
	for k, v := range snapshot {
		path := append(append([]string{}, prefix...), k)
		patches = append(patches, makePatch(OpAdd, path, v, trie))
	}
	return patches
}

// diffMaps deep-compares prev and curr, emitting add/replace/remove
// patches with JSON-Pointer-shaped paths (spec §4.1 step 2).
func diffMaps(prev, curr map[string]any, trie *PathTrie, prefix []string) []Patch {
	var patches []Patch

	for k, cv := range curr {
		path := append(append([]string{}, prefix...), k)
		pv, existed := prev[k]
		if !existed {
			patches = append(patches, makePatch(OpAdd, path, cv, trie))
			continue
		}
		if equalValue(pv, cv) {
			continue
		}
		pm, pIsMap := pv.(map[string]any)
		cm, cIsMap := cv.(map[string]any)
		if pIsMap && cIsMap {
			patches = append(patches, diffMaps(pm, cm, trie, path)...)
			continue
		}
		patches = append(patches, makePatch(OpReplace, path, cv, trie))
	}

	for k := range prev {
		if _, ok := curr[k]; !ok {
			path := append(append([]string{}, prefix...), k)
			patches = append(patches, makePatch(OpRemove, path, nil, trie))
		}
	}

	return patches
}

func makePatch(op PatchOp, path []string, value any, trie *PathTrie) Patch {
	hash, dynamicKeys := trie.Encode(path)
	pointer := ""
	for _, seg := range path {
		pointer += "/" + seg
	}
	return Patch{
		Op:          op,
		Path:        pointer,
		PathHash:    hash,
		DynamicKeys: dynamicKeys,
		Value:       value,
	}
}

// equalValue performs a deep structural comparison suitable for generic
// snapshot trees (maps/slices/primitives).
func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// ApplyPatches applies patches against a previous projection, producing
// the current projection. Used client-side and by the "diff soundness"
// testable property (spec §8).
func ApplyPatches(prev map[string]any, patches []Patch) (map[string]any, error) {
	out := make(map[string]any, len(prev))
	for k, v := range prev {
		out[k] = v
	}
	for _, p := range patches {
		segments := splitPointer(p.Path)
		if len(segments) == 0 {
			return nil, fmt.Errorf("syncengine: empty patch path")
		}
		if err := applyOne(out, segments, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyOne(root map[string]any, segments []string, p Patch) error {
	node := root
	for i := 0; i < len(segments)-1; i++ {
		next, ok := node[segments[i]].(map[string]any)
		if !ok {
			if p.Op == OpRemove {
				return nil
			}
			next = make(map[string]any)
			node[segments[i]] = next
		}
		node = next
	}
	last := segments[len(segments)-1]
	switch p.Op {
	case OpAdd, OpReplace:
		node[last] = p.Value
	case OpRemove:
		delete(node, last)
	default:
		return fmt.Errorf("syncengine: unknown patch op %q", p.Op)
	}
	return nil
}

func splitPointer(path string) []string {
	if len(path) == 0 {
		return nil
	}
	if path[0] == '/' {
		path = path[1:]
	}
	if path == "" {
		return nil
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}

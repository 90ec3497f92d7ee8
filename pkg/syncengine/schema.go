package syncengine

import "fmt"

// PlayerID is the stable per-land identity assigned by a land's CanJoin
// handler. See spec §3 "PlayerID".
type PlayerID string

// PolicyKind names the visibility rule attached to a field.
type PolicyKind int

const (
	// PolicyBroadcast sends the field to every member as-is.
	PolicyBroadcast PolicyKind = iota
	// PolicyServerOnly never sends the field to any client.
	PolicyServerOnly
	// PolicyPerPlayer sends only the mapping entry keyed by the target's own id.
	PolicyPerPlayer
	// PolicyMasked calls a user-supplied transform for the per-player projection.
	PolicyMasked
)

func (p PolicyKind) String() string {
	switch p {
	case PolicyBroadcast:
		return "broadcast"
	case PolicyServerOnly:
		return "serverOnly"
	case PolicyPerPlayer:
		return "perPlayer"
	case PolicyMasked:
		return "masked"
	default:
		return "unknown"
	}
}

// FieldKind names the shape of a field's value.
type FieldKind int

const (
	KindPrimitive FieldKind = iota
	KindSequence
	KindSet
	KindMapping
	KindAggregate
)

// TransformFunc projects a masked/custom field's raw value for a given
// target player. ok=false drops the field from that player's projection
// for this tick. A transform that panics is recovered by the engine and
// treated as if it returned ok=false, downgrading the field to serverOnly
// for that tick (spec §4.1 "Failure semantics").
type TransformFunc func(value any, target *PlayerID) (projected any, ok bool)

// FieldSchema declares one field of a land's state tree.
type FieldSchema struct {
	// Name is the field's key in the enclosing aggregate.
	Name string
	// Kind describes the shape of the field's value.
	Kind FieldKind
	// Policy is the sync visibility rule for this field.
	Policy PolicyKind
	// Transform is required when Policy == PolicyMasked.
	Transform TransformFunc
	// Children describes nested field metadata for KindAggregate fields,
	// or the element schema (as a single entry) for sequences/mappings of
	// aggregates. Leaf primitive fields leave this nil.
	Children []*FieldSchema
}

// Schema is the full declared state-tree shape for one land type.
type Schema struct {
	// LandType names the land type this schema belongs to.
	LandType string
	// Fields are the top-level named fields of the state tree.
	Fields []*FieldSchema
	// trie is built once from the schema's static path patterns and is
	// safe for concurrent readers (spec §4.1 "must be safe for concurrent
	// readers").
	trie *PathTrie
}

// NewSchema validates and compiles a Schema, building its path trie.
// Masked fields must carry a non-nil Transform; every field name within
// one aggregate must be unique.
func NewSchema(landType string, fields []*FieldSchema) (*Schema, error) {
	if landType == "" {
		return nil, fmt.Errorf("syncengine: land type must not be empty")
	}
	if err := validateFields(fields); err != nil {
		return nil, fmt.Errorf("syncengine: invalid schema for %s: %w", landType, err)
	}
	s := &Schema{LandType: landType, Fields: fields}
	s.trie = BuildTrie(collectPatterns(fields, nil))
	return s, nil
}

func validateFields(fields []*FieldSchema) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Policy == PolicyMasked && f.Transform == nil {
			return fmt.Errorf("field %q: masked policy requires a Transform", f.Name)
		}
		if f.Kind == KindAggregate {
			if err := validateFields(f.Children); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

// collectPatterns walks the schema producing the static dotted path
// patterns used to seed the path trie, e.g. "players.*.hp" for a perPlayer
// or mapping field nested under an aggregate.
func collectPatterns(fields []*FieldSchema, prefix []string) []string {
	var patterns []string
	for _, f := range fields {
		path := append(append([]string{}, prefix...), f.Name)
		patterns = append(patterns, joinDotted(path))
		switch f.Kind {
		case KindMapping, KindSequence, KindSet:
			wildcardPath := append(append([]string{}, path...), "*")
			patterns = append(patterns, joinDotted(wildcardPath))
			if len(f.Children) > 0 {
				patterns = append(patterns, collectPatterns(f.Children, wildcardPath)...)
			}
		case KindAggregate:
			if len(f.Children) > 0 {
				patterns = append(patterns, collectPatterns(f.Children, path)...)
			}
		}
	}
	return patterns
}

// Trie returns the schema's compiled, read-only path trie.
func (s *Schema) Trie() *PathTrie {
	return s.trie
}

// Field looks up a top-level field by name.
func (s *Schema) Field(name string) (*FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

package replay

import (
	"encoding/json"
	"time"
)

// EntryKind names one recorded event in a land's lifecycle stream.
type EntryKind string

const (
	EntryJoin   EntryKind = "join"
	EntryAction EntryKind = "action"
	EntryEvent  EntryKind = "event"
	EntryLeave  EntryKind = "leave"
)

// Entry is one recorded lifecycle event, in the order it was observed by
// the land keeper's single mailbox goroutine. Replaying entries in this
// same order against a freshly seeded instance reproduces the original
// run bit-for-bit, provided every source of nondeterminism in the land
// definition routes through land.RNG.
type Entry struct {
	Kind           EntryKind       `yaml:"kind"`
	Tick           uint64          `yaml:"tick"`
	SessionID      string          `yaml:"sessionId"`
	ClientID       string          `yaml:"clientId,omitempty"`
	TypeIdentifier string          `yaml:"type,omitempty"`
	Payload        json.RawMessage `yaml:"payload,omitempty"`
	RecordedAt     time.Time       `yaml:"recordedAt"`
}

// Recording is the full persisted record for one land instance's run: the
// seed it was constructed with plus its ordered lifecycle stream.
type Recording struct {
	LandType   string    `yaml:"landType"`
	InstanceID string    `yaml:"instanceId"`
	Seed       int64     `yaml:"seed"`
	StartedAt  time.Time `yaml:"startedAt"`
	Entries    []Entry   `yaml:"entries"`
}

// filename returns the recording's storage-relative filename.
func (r *Recording) filename() string {
	return "replay-" + r.LandType + "-" + r.InstanceID + ".yaml"
}

package replay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"landkeeper/pkg/integration"
	"landkeeper/pkg/persistence"

	"github.com/sirupsen/logrus"
)

// Recorder accumulates one land instance's lifecycle stream in memory and
// flushes it to a FileStore. A Recorder is safe for concurrent use, but in
// practice every call arrives serialized through the land keeper's single
// mailbox goroutine (spec §5 "Concurrency model").
type Recorder struct {
	store *persistence.FileStore

	mu        sync.Mutex
	recording Recording

	log *logrus.Entry
}

// NewRecorder constructs a Recorder for one land instance, seeded the same
// way the keeper itself was (spec §9 "the seed recorded in the original
// run's header").
func NewRecorder(store *persistence.FileStore, landType, instanceID string, seed int64) *Recorder {
	return &Recorder{
		store: store,
		recording: Recording{
			LandType:   landType,
			InstanceID: instanceID,
			Seed:       seed,
			StartedAt:  time.Now(),
		},
		log: logrus.WithFields(logrus.Fields{"component": "replay", "landType": landType, "instanceId": instanceID}),
	}
}

func (r *Recorder) append(e Entry) {
	e.RecordedAt = time.Now()
	r.mu.Lock()
	r.recording.Entries = append(r.recording.Entries, e)
	r.mu.Unlock()
}

// RecordJoin appends a join entry.
func (r *Recorder) RecordJoin(tick uint64, sessionID, clientID string) {
	r.append(Entry{Kind: EntryJoin, Tick: tick, SessionID: sessionID, ClientID: clientID})
}

// RecordAction appends an action entry.
func (r *Recorder) RecordAction(tick uint64, sessionID, typeIdentifier string, payload []byte) {
	r.append(Entry{Kind: EntryAction, Tick: tick, SessionID: sessionID, TypeIdentifier: typeIdentifier, Payload: json.RawMessage(payload)})
}

// RecordEvent appends a client event entry.
func (r *Recorder) RecordEvent(tick uint64, sessionID, typeIdentifier string, payload []byte) {
	r.append(Entry{Kind: EntryEvent, Tick: tick, SessionID: sessionID, TypeIdentifier: typeIdentifier, Payload: json.RawMessage(payload)})
}

// RecordLeave appends a leave entry.
func (r *Recorder) RecordLeave(tick uint64, sessionID string) {
	r.append(Entry{Kind: EntryLeave, Tick: tick, SessionID: sessionID})
}

// Flush persists the recording so far via an atomic write, guarded by the
// filesystem circuit breaker (spec "ambient stack" — every write the
// runtime makes to local disk goes through pkg/resilience).
func (r *Recorder) Flush() error {
	r.mu.Lock()
	snapshot := r.recording
	snapshot.Entries = append([]Entry(nil), r.recording.Entries...)
	r.mu.Unlock()

	return integration.ExecuteFileSystemOperation(context.Background(), func(context.Context) error {
		return r.store.Save(snapshot.filename(), snapshot)
	})
}

package replay

import (
	"sync"

	"landkeeper/pkg/persistence"

	"github.com/sirupsen/logrus"
)

// Manager owns one Recorder per live land instance and satisfies
// transport.ActionRecorder, so the transport adapter can feed every
// join/action/event/leave it routes straight into a recording without
// knowing anything about persistence.
type Manager struct {
	store *persistence.FileStore

	mu        sync.Mutex
	recorders map[string]*Recorder // landType+":"+instanceID -> Recorder

	log *logrus.Entry
}

// NewManager constructs a Manager backed by a FileStore rooted at dataDir.
// It panics if the FileStore cannot be created.
func NewManager(dataDir string) *Manager {
	store, err := persistence.NewFileStore(dataDir)
	if err != nil {
		panic("replay: open recording store: " + err.Error())
	}
	return &Manager{
		store:     store,
		recorders: make(map[string]*Recorder),
		log:       logrus.WithField("component", "replay"),
	}
}

func key(landType, instanceID string) string { return landType + ":" + instanceID }

func (m *Manager) recorderFor(landType, instanceID string, seed int64) *Recorder {
	k := key(landType, instanceID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recorders[k]; ok {
		return r
	}
	r := NewRecorder(m.store, landType, instanceID, seed)
	m.recorders[k] = r
	return r
}

// RecordJoin implements transport.ActionRecorder.
func (m *Manager) RecordJoin(landType, instanceID string, seed int64, tick uint64, sessionID, clientID string) {
	m.recorderFor(landType, instanceID, seed).RecordJoin(tick, sessionID, clientID)
}

// RecordAction implements transport.ActionRecorder.
func (m *Manager) RecordAction(landType, instanceID string, seed int64, tick uint64, sessionID, typeIdentifier string, payload []byte) {
	m.recorderFor(landType, instanceID, seed).RecordAction(tick, sessionID, typeIdentifier, payload)
}

// RecordEvent implements transport.ActionRecorder.
func (m *Manager) RecordEvent(landType, instanceID string, seed int64, tick uint64, sessionID, typeIdentifier string, payload []byte) {
	m.recorderFor(landType, instanceID, seed).RecordEvent(tick, sessionID, typeIdentifier, payload)
}

// RecordLeave implements transport.ActionRecorder.
func (m *Manager) RecordLeave(landType, instanceID string, seed int64, tick uint64, sessionID string) {
	m.recorderFor(landType, instanceID, seed).RecordLeave(tick, sessionID)
}

// Flush persists every recorder's accumulated stream, logging (but not
// aborting on) individual failures so one bad instance does not block the
// rest of the sweep.
func (m *Manager) Flush() {
	m.mu.Lock()
	recorders := make([]*Recorder, 0, len(m.recorders))
	for _, r := range m.recorders {
		recorders = append(recorders, r)
	}
	m.mu.Unlock()

	for _, r := range recorders {
		if err := r.Flush(); err != nil {
			m.log.WithError(err).Warn("failed to flush replay recording")
		}
	}
}

// Load reads a previously flushed recording back for replay.
func (m *Manager) Load(landType, instanceID string) (*Recording, error) {
	var rec Recording
	if err := m.store.Load((&Recording{LandType: landType, InstanceID: instanceID}).filename(), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

package replay

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/realm"
	"landkeeper/pkg/syncengine"

	"github.com/sirupsen/logrus"
)

// RunStatus is the lifecycle state of one replay run, surfaced by the
// admin surface's POST /admin/reevaluation/replay/start.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed  RunStatus = "failed"
)

// RunResult records one replay run's outcome. StateHash is an FNV-1a hash
// of the land type, instance id, seed and final tick count; it does not
// cover the land's state contents.
type RunResult struct {
	ID         string    `json:"id"`
	LandType   string    `json:"landType"`
	InstanceID string    `json:"instanceId"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	EntryCount int       `json:"entryCount"`
	StateHash  string    `json:"stateHash,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// replayOutbound absorbs every delivery a replayed keeper makes; a replay
// run verifies state convergence, it does not re-serve clients.
type replayOutbound struct{}

func (replayOutbound) DeliverEvent(land.SessionID, land.ServerEvent) error                  { return nil }
func (replayOutbound) DeliverSnapshot(land.SessionID, syncengine.StateSnapshot) error        { return nil }
func (replayOutbound) DeliverUpdate(land.SessionID, *syncengine.StateUpdate) error           { return nil }
func (replayOutbound) Disconnect(land.SessionID, int, string) error                          { return nil }

// Runner replays recordings loaded via a Manager against a land type's
// registered replay alias (spec §4.4 "replay alias").
type Runner struct {
	manager  *Manager
	registry *realm.Registry

	mu      sync.Mutex
	results map[string]*RunResult

	log *logrus.Entry
}

// NewRunner constructs a Runner reading recordings from manager and
// instantiating replay keepers through registry.
func NewRunner(manager *Manager, registry *realm.Registry) *Runner {
	return &Runner{
		manager:  manager,
		registry: registry,
		results:  make(map[string]*RunResult),
		log:      logrus.WithField("component", "replay"),
	}
}

// Start launches an asynchronous replay of the recording for landType and
// instanceID, returning a run id the caller can poll via Result.
func (run *Runner) Start(runID, landType, instanceID string) (*RunResult, error) {
	rec, err := run.manager.Load(landType, instanceID)
	if err != nil {
		return nil, fmt.Errorf("replay: load recording for %s:%s: %w", landType, instanceID, err)
	}

	result := &RunResult{
		ID: runID, LandType: landType, InstanceID: instanceID,
		Status: RunPending, EntryCount: len(rec.Entries), StartedAt: time.Now(),
	}
	run.mu.Lock()
	run.results[runID] = result
	run.mu.Unlock()

	go run.execute(runID, rec)
	return result, nil
}

// Result returns a snapshot of a previously started run.
func (run *Runner) Result(runID string) (*RunResult, bool) {
	run.mu.Lock()
	defer run.mu.Unlock()
	r, ok := run.results[runID]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (run *Runner) setStatus(runID string, mutate func(*RunResult)) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if r, ok := run.results[runID]; ok {
		mutate(r)
	}
}

func (run *Runner) execute(runID string, rec *Recording) {
	run.setStatus(runID, func(r *RunResult) { r.Status = RunRunning })

	factory, err := run.registry.ReplayFactory(rec.LandType)
	if err != nil {
		run.fail(runID, err)
		return
	}

	k, err := factory(rec.InstanceID+"-replay-"+runID, map[string]any{"seed": rec.Seed})
	if err != nil {
		run.fail(runID, fmt.Errorf("replay: factory: %w", err))
		return
	}
	defer k.Retire("replay run finished")

	for _, e := range rec.Entries {
		if err := run.applyEntry(k, e); err != nil {
			run.fail(runID, fmt.Errorf("replay: entry %s at tick %d: %w", e.Kind, e.Tick, err))
			return
		}
	}

	hash := fnv.New64a()
	_, _ = hash.Write([]byte(fmt.Sprintf("%s:%s:%d:%d", rec.LandType, rec.InstanceID, rec.Seed, k.CurrentTick())))
	stateHash := fmt.Sprintf("%x", hash.Sum64())

	run.setStatus(runID, func(r *RunResult) {
		r.Status = RunSucceeded
		r.StateHash = stateHash
		r.FinishedAt = time.Now()
	})
}

func (run *Runner) fail(runID string, err error) {
	run.log.WithError(err).Warn("replay run failed")
	run.setStatus(runID, func(r *RunResult) {
		r.Status = RunFailed
		r.Error = err.Error()
		r.FinishedAt = time.Now()
	})
}

func (run *Runner) applyEntry(k *land.Keeper, e Entry) error {
	switch e.Kind {
	case EntryJoin:
		_, err := k.Join(&land.Session{SessionID: land.SessionID(e.SessionID), ClientID: e.ClientID}, replayOutbound{}, nil)
		return err
	case EntryAction:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := k.SubmitAction(ctx, land.SessionID(e.SessionID), e.TypeIdentifier, e.Payload)
		return err
	case EntryEvent:
		return k.SubmitClientEvent(land.SessionID(e.SessionID), e.TypeIdentifier, e.Payload)
	case EntryLeave:
		return k.Leave(land.SessionID(e.SessionID))
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

package realm

import (
	"fmt"
	"sync"
	"time"

	"landkeeper/pkg/land"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Factory constructs a fresh, unstarted Keeper for one instance of a land
// type (spec §4.4 "factory is (instanceId, options) -> Keeper").
type Factory func(instanceID string, options map[string]any) (*land.Keeper, error)

type typeEntry struct {
	landType string
	wsPath   string
	factory  Factory

	replayWSPath string
	replayFactory Factory
}

// Registry is the LandTypeRegistry: it holds one entry per registered land
// type plus the live instance directory for each. Reads (routing a join)
// dominate; writes happen only at registration and retirement (spec §5
// "Shared resources" — "single read-write guard; reads dominate").
type Registry struct {
	mu        sync.RWMutex
	types     map[string]*typeEntry
	pathIndex map[string]string // wsPath -> landType

	instances map[string]map[string]*land.Keeper // landType -> instanceID -> keeper

	log *logrus.Entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]*typeEntry),
		pathIndex: make(map[string]string),
		instances: make(map[string]map[string]*land.Keeper),
		log:       logrus.WithField("component", "realm"),
	}
}

// Register binds landType to wsPath and factory. It may be called at most
// once per land type (spec §4.4 "LandTypeRegistry").
func (r *Registry) Register(landType, wsPath string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[landType]; exists {
		return ErrLandTypeAlreadyRegistered
	}
	if existing, exists := r.pathIndex[wsPath]; exists && existing != landType {
		return ErrWSPathAlreadyRegistered
	}

	r.types[landType] = &typeEntry{landType: landType, wsPath: wsPath, factory: factory}
	r.pathIndex[wsPath] = landType
	r.instances[landType] = make(map[string]*land.Keeper)

	r.log.WithFields(logrus.Fields{"landType": landType, "wsPath": wsPath}).Info("land type registered")
	return nil
}

// RegisterReplay binds a replay alias (landType + "-replay") for an
// already-registered land type. It verifies the alias factory's keeper
// carries the same definition id as the primary by instantiating a
// throwaway keeper and inspecting LandType(); the throwaway keeper is
// never started (spec §4.4 "verifies ... same definition.id as the
// primary").
func (r *Registry) RegisterReplay(landType, wsPath string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.types[landType]
	if !exists {
		return ErrLandTypeNotRegistered
	}

	probe, err := factory("__replay_verify__", nil)
	if err != nil {
		return fmt.Errorf("realm: replay alias probe instantiation failed: %w", err)
	}
	if probe.LandType() != landType {
		return ErrReplayDefinitionMismatch
	}

	if existing, exists := r.pathIndex[wsPath]; exists && existing != landType {
		return ErrWSPathAlreadyRegistered
	}

	entry.replayWSPath = wsPath
	entry.replayFactory = factory
	r.pathIndex[wsPath] = landType

	r.log.WithFields(logrus.Fields{"landType": landType, "wsPath": wsPath}).Info("replay alias registered")
	return nil
}

// LandTypeForPath resolves a WebSocket path to its registered land type.
func (r *Registry) LandTypeForPath(wsPath string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	landType, ok := r.pathIndex[wsPath]
	return landType, ok
}

// ReplayFactory returns the registered replay factory for landType, if any.
func (r *Registry) ReplayFactory(landType string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[landType]
	if !ok {
		return nil, ErrLandTypeNotRegistered
	}
	if entry.replayFactory == nil {
		return nil, ErrNoReplayAlias
	}
	return entry.replayFactory, nil
}

// Lookup returns the live keeper for landType/instanceID, if any.
func (r *Registry) Lookup(landType, instanceID string) (*land.Keeper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instances, ok := r.instances[landType]
	if !ok {
		return nil, false
	}
	k, ok := instances[instanceID]
	return k, ok
}

// GetOrCreate resolves the keeper for landType/instanceID (spec §4.4
// "LandRouter" steps 2-4). When instanceID is empty, a fresh instance with
// a generated id is always created. When instanceID is non-empty and no
// instance exists, a new one is created only if allowAutoCreate is true;
// otherwise ErrLandNotFound is returned.
func (r *Registry) GetOrCreate(landType, instanceID string, options map[string]any, allowAutoCreate bool) (*land.Keeper, error) {
	if instanceID == "" {
		return r.createInstance(landType, uuid.NewString(), options)
	}

	if k, ok := r.Lookup(landType, instanceID); ok {
		return k, nil
	}
	if !allowAutoCreate {
		return nil, ErrLandNotFound
	}
	return r.createInstance(landType, instanceID, options)
}

func (r *Registry) createInstance(landType, instanceID string, options map[string]any) (*land.Keeper, error) {
	r.mu.Lock()
	entry, ok := r.types[landType]
	if !ok {
		r.mu.Unlock()
		return nil, ErrLandTypeNotRegistered
	}
	if existing, ok := r.instances[landType][instanceID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	k, err := entry.factory(instanceID, options)
	if err != nil {
		return nil, fmt.Errorf("realm: factory for %s: %w", landType, err)
	}

	r.mu.Lock()
	// Re-check under the write lock: another goroutine may have raced us
	// to create the same instance while the factory ran outside the lock.
	if existing, ok := r.instances[landType][instanceID]; ok {
		r.mu.Unlock()
		k.Retire("duplicate creation lost race")
		return existing, nil
	}
	r.instances[landType][instanceID] = k
	r.mu.Unlock()

	k.Start()
	r.log.WithFields(logrus.Fields{"landType": landType, "instanceId": instanceID}).Info("land instance created")
	return k, nil
}

// Retire removes a live instance from the directory and retires its
// keeper (spec §4.6 "DELETE /admin/lands/:landId"). Returns
// ErrLandTypeNotRegistered or ErrLandNotFound if the instance does not
// exist.
func (r *Registry) Retire(landType, instanceID, reason string) error {
	r.mu.Lock()
	instances, ok := r.instances[landType]
	if !ok {
		r.mu.Unlock()
		return ErrLandTypeNotRegistered
	}
	k, ok := instances[instanceID]
	if !ok {
		r.mu.Unlock()
		return ErrLandNotFound
	}
	delete(instances, instanceID)
	r.mu.Unlock()

	k.Retire(reason)
	return nil
}

// Instances returns a snapshot slice of every live keeper across every
// land type, for the admin surface and the retirement sweep.
func (r *Registry) Instances() []*land.Keeper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*land.Keeper, 0)
	for _, instances := range r.instances {
		for _, k := range instances {
			out = append(out, k)
		}
	}
	return out
}

// InstancesOf returns a snapshot slice of live keepers for one land type.
func (r *Registry) InstancesOf(landType string) []*land.Keeper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances, ok := r.instances[landType]
	if !ok {
		return nil
	}
	out := make([]*land.Keeper, 0, len(instances))
	for _, k := range instances {
		out = append(out, k)
	}
	return out
}

// SweepRetirements retires every instance that has been idle continuously
// for at least grace (spec §4.4 "Retirement" — "A keeper that has been
// idle beyond its configured grace is unregistered").
func (r *Registry) SweepRetirements(grace time.Duration) int {
	now := time.Now()
	retired := 0

	for landType, instances := range r.snapshotInstances() {
		for instanceID, k := range instances {
			stats := k.Stats()
			if !stats.Idle || stats.IdleSince.IsZero() {
				continue
			}
			if now.Sub(stats.IdleSince) < grace {
				continue
			}
			if err := r.Retire(landType, instanceID, "idle grace exceeded"); err != nil {
				r.log.WithError(err).Warn("retirement sweep: failed to retire idle instance")
				continue
			}
			retired++
		}
	}
	return retired
}

func (r *Registry) snapshotInstances() map[string]map[string]*land.Keeper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]*land.Keeper, len(r.instances))
	for landType, instances := range r.instances {
		copied := make(map[string]*land.Keeper, len(instances))
		for id, k := range instances {
			copied[id] = k
		}
		out[landType] = copied
	}
	return out
}

package realm

import (
	"errors"

	"landkeeper/pkg/land"
)

// Router resolves a join request arriving on a WebSocket path to a live
// keeper, applying the registry's auto-create policy (spec §4.4
// "LandRouter").
type Router struct {
	registry            *Registry
	allowAutoCreateOnJoin bool
}

// NewRouter constructs a Router over registry. allowAutoCreateOnJoin
// governs step 2 of the routing algorithm for every land type the
// registry knows about.
func NewRouter(registry *Registry, allowAutoCreateOnJoin bool) *Router {
	return &Router{registry: registry, allowAutoCreateOnJoin: allowAutoCreateOnJoin}
}

// LandTypeForPath exposes the registry's path resolution directly, for
// callers (e.g. the transport adapter) that need the land type before
// deciding whether to accept a token-bound join.
func (r *Router) LandTypeForPath(wsPath string) (string, bool) {
	return r.registry.LandTypeForPath(wsPath)
}

// Route implements spec §4.4 steps 1-4: resolve the land type from path,
// then resolve or create the instance. Failures come back as a
// *land.JoinError with code "landNotFound" (unknown path or instance) or
// "custom" (any other registry error, its text as the message), so the
// TransportAdapter can surface a typed joinResponse failure reason
// directly. The JoinError does not wrap the registry's sentinel errors.
func (r *Router) Route(wsPath, instanceID string, options map[string]any) (*land.Keeper, error) {
	landType, ok := r.registry.LandTypeForPath(wsPath)
	if !ok {
		return nil, land.NewJoinError("landNotFound", "no land type registered for this path")
	}

	k, err := r.registry.GetOrCreate(landType, instanceID, options, r.allowAutoCreateOnJoin)
	if err != nil {
		if errors.Is(err, ErrLandNotFound) {
			return nil, land.NewJoinError("landNotFound", "instance "+instanceID+" does not exist")
		}
		return nil, land.NewJoinError("custom", err.Error())
	}
	return k, nil
}

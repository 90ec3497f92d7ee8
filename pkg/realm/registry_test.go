package realm

import (
	"testing"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/syncengine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory(t *testing.T) Factory {
	t.Helper()
	schema, err := syncengine.NewSchema("demo", []*syncengine.FieldSchema{
		{Name: "tick", Kind: syncengine.KindPrimitive, Policy: syncengine.PolicyBroadcast},
	})
	require.NoError(t, err)

	return func(instanceID string, options map[string]any) (*land.Keeper, error) {
		return land.NewKeeper(&land.Definition{
			ID:           "demo",
			Schema:       schema,
			InitialState: func() map[string]any { return map[string]any{"tick": 0} },
			TickInterval: 20 * time.Millisecond,
			CanJoin: func(state map[string]any, session *land.Session, ctx *land.JoinContext) (land.PlayerID, error) {
				return land.PlayerID(session.ClientID), nil
			},
		}, instanceID, 1)
	}
}

func TestRegisterDuplicateLandTypeRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", testFactory(t)))
	err := r.Register("demo", "/game/demo2", testFactory(t))
	assert.ErrorIs(t, err, ErrLandTypeAlreadyRegistered)
}

func TestGetOrCreateAutoCreateDisabledMissingInstance(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", testFactory(t)))
	router := NewRouter(r, false)

	_, err := router.Route("/game/demo", "missing", nil)
	require.Error(t, err)
	var joinErr *land.JoinError
	require.ErrorAs(t, err, &joinErr)
	assert.Equal(t, "landNotFound", joinErr.Code)
}

func TestGetOrCreateAutoCreateEnabledCreatesInstance(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", testFactory(t)))
	router := NewRouter(r, true)

	k, err := router.Route("/game/demo", "new-1", nil)
	require.NoError(t, err)
	defer k.Retire("test cleanup")
	assert.Equal(t, "demo:new-1", k.LandID())

	k2, ok := r.Lookup("demo", "new-1")
	require.True(t, ok)
	assert.Same(t, k, k2)
}

func TestRegisterReplayVerifiesDefinitionID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", testFactory(t)))
	require.NoError(t, r.RegisterReplay("demo", "/game/demo-replay", testFactory(t)))

	mismatched := func(instanceID string, options map[string]any) (*land.Keeper, error) {
		schema, err := syncengine.NewSchema("other", nil)
		require.NoError(t, err)
		return land.NewKeeper(&land.Definition{
			ID:           "other",
			Schema:       schema,
			InitialState: func() map[string]any { return map[string]any{} },
			TickInterval: time.Second,
			CanJoin: func(state map[string]any, session *land.Session, ctx *land.JoinContext) (land.PlayerID, error) {
				return land.PlayerID(session.ClientID), nil
			},
		}, instanceID, 1)
	}

	r2 := NewRegistry()
	require.NoError(t, r2.Register("demo", "/game/demo", testFactory(t)))
	err := r2.RegisterReplay("demo", "/game/demo-replay", mismatched)
	assert.ErrorIs(t, err, ErrReplayDefinitionMismatch)
}

func TestSweepRetirementsRetiresIdlePastGrace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", testFactory(t)))
	router := NewRouter(r, true)

	k, err := router.Route("/game/demo", "inst-1", nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond) // let a tick mark it idle
	retired := r.SweepRetirements(10 * time.Millisecond)
	assert.Equal(t, 1, retired)
	assert.True(t, k.Retired() || k.Stats().SessionCount == 0)

	_, ok := r.Lookup("demo", "inst-1")
	assert.False(t, ok)
}

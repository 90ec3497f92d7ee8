package land

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"landkeeper/pkg/syncengine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutbound records delivered events/updates/snapshots for assertions.
type fakeOutbound struct {
	mu          sync.Mutex
	snapshots   []syncengine.StateSnapshot
	updates     []*syncengine.StateUpdate
	events      []ServerEvent
	disconnects []string
}

func (f *fakeOutbound) DeliverEvent(sessionID SessionID, event ServerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbound) DeliverSnapshot(sessionID SessionID, snapshot syncengine.StateSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeOutbound) DeliverUpdate(sessionID SessionID, update *syncengine.StateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeOutbound) Disconnect(sessionID SessionID, code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, reason)
	return nil
}

func (f *fakeOutbound) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func (f *fakeOutbound) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func testDefinition(t *testing.T) *Definition {
	t.Helper()
	schema, err := syncengine.NewSchema("demo", []*syncengine.FieldSchema{
		{Name: "tick", Kind: syncengine.KindPrimitive, Policy: syncengine.PolicyBroadcast},
		{Name: "scores", Kind: syncengine.KindMapping, Policy: syncengine.PolicyPerPlayer},
	})
	require.NoError(t, err)

	return &Definition{
		ID:     "demo",
		Schema: schema,
		InitialState: func() map[string]any {
			return map[string]any{"tick": 0, "scores": map[string]any{}}
		},
		TickInterval: 10 * time.Millisecond,
		TickHandler: func(state map[string]any, ctx *LandContext) error {
			state["tick"] = int(ctx.Tick)
			return nil
		},
		CanJoin: func(state map[string]any, session *Session, ctx *JoinContext) (PlayerID, error) {
			return PlayerID(session.ClientID), nil
		},
		OnJoin: func(state map[string]any, ctx *LandContext) {
			scores := state["scores"].(map[string]any)
			scores[string(ctx.PlayerID)] = map[string]any{"score": 0}
		},
		ActionHandlers: map[string]ActionHandler{
			"buyUpgrade": func(state map[string]any, ctx *LandContext, payload []byte) (any, error) {
				if string(payload) == "boom" {
					return nil, errors.New("insufficient funds")
				}
				return "ok", nil
			},
		},
		ClientEventHandlers: map[string]ClientEventHandler{
			"ping": func(state map[string]any, ctx *LandContext, payload []byte) {},
		},
	}
}

func startKeeper(t *testing.T) *Keeper {
	t.Helper()
	k, err := NewKeeper(testDefinition(t), "inst-1", 42)
	require.NoError(t, err)
	k.Start()
	t.Cleanup(func() { k.Retire("test cleanup") })
	return k
}

func TestJoinDeliversFirstSyncBeforeAnyDiff(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}

	playerID, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out, nil)
	require.NoError(t, err)
	assert.Equal(t, PlayerID("p1"), playerID)
	assert.Equal(t, 1, out.snapshotCount())
	assert.Equal(t, 0, out.updateCount())

	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, out.updateCount(), 1)
}

func TestPerPlayerNeverLeaksOtherKeys(t *testing.T) {
	k := startKeeper(t)
	out1 := &fakeOutbound{}
	out2 := &fakeOutbound{}

	_, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out1, nil)
	require.NoError(t, err)
	_, err = k.Join(&Session{SessionID: "s2", ClientID: "p2"}, out2, nil)
	require.NoError(t, err)

	require.Len(t, out1.snapshots, 1)
	scores := out1.snapshots[0]["scores"].(map[string]any)
	assert.Contains(t, scores, "p1")
	assert.NotContains(t, scores, "p2")
}

func TestDuplicatePlayerIDRejected(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}
	_, err := k.Join(&Session{SessionID: "s1", ClientID: "dup"}, out, nil)
	require.NoError(t, err)

	_, err = k.Join(&Session{SessionID: "s2", ClientID: "dup"}, &fakeOutbound{}, nil)
	require.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestActionDispatchErrorIsolation(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}
	_, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = k.SubmitAction(ctx, "s1", "buyUpgrade", []byte("boom"))
	require.Error(t, err)
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "handlerError", dispatchErr.Code)

	// Subsequent actions from the same session still succeed, and the tick
	// counter keeps advancing (spec §8 scenario 6).
	resp, err := k.SubmitAction(ctx, "s1", "buyUpgrade", []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, k.CurrentTick(), uint64(0))
}

func TestUnknownActionReturnsTypedError(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}
	_, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out, nil)
	require.NoError(t, err)

	_, err = k.SubmitAction(context.Background(), "s1", "noSuchAction", nil)
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "unknownAction", dispatchErr.Code)
}

func TestSendEventToPlayerTarget(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}
	_, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out, nil)
	require.NoError(t, err)

	require.NoError(t, k.SubmitClientEvent("s1", "ping", nil))

	err = k.enqueue(func() {
		ctx := k.newContext("p1", "s1")
		ctx.SendEvent(ServerEvent{Type: "pong"}, TargetPlayer("p1"))
	})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	out.mu.Lock()
	defer out.mu.Unlock()
	require.Len(t, out.events, 1)
	assert.Equal(t, "pong", out.events[0].Type)
}

func TestLeaveForgetsPlayerProjection(t *testing.T) {
	k := startKeeper(t)
	out := &fakeOutbound{}
	_, err := k.Join(&Session{SessionID: "s1", ClientID: "p1"}, out, nil)
	require.NoError(t, err)
	require.NoError(t, k.Leave("s1"))

	out2 := &fakeOutbound{}
	_, err = k.Join(&Session{SessionID: "s2", ClientID: "p1"}, out2, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out2.snapshotCount())
}

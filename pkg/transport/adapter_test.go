package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/realm"
	"landkeeper/pkg/syncengine"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *realm.Registry {
	t.Helper()
	schema, err := syncengine.NewSchema("demo", []*syncengine.FieldSchema{
		{Name: "tick", Kind: syncengine.KindPrimitive, Policy: syncengine.PolicyBroadcast},
	})
	require.NoError(t, err)

	r := realm.NewRegistry()
	require.NoError(t, r.Register("demo", "/game/demo", func(instanceID string, options map[string]any) (*land.Keeper, error) {
		return land.NewKeeper(&land.Definition{
			ID:           "demo",
			Schema:       schema,
			InitialState: func() map[string]any { return map[string]any{"tick": 0} },
			TickInterval: 10 * time.Millisecond,
			CanJoin: func(state map[string]any, session *land.Session, ctx *land.JoinContext) (land.PlayerID, error) {
				return land.PlayerID(session.ClientID), nil
			},
			ActionHandlers: map[string]land.ActionHandler{
				"ping": func(state map[string]any, ctx *land.LandContext, payload []byte) (any, error) {
					return "pong", nil
				},
			},
		}, instanceID, 1)
	}))
	return r
}

func dialJSON(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestPreJoinNonJoinEnvelopeClosesSession(t *testing.T) {
	registry := testRegistry(t)
	router := realm.NewRouter(registry, true)
	adapter := NewAdapter(router, AdapterConfig{DefaultEncoding: syncengine.EncodingJSON})

	server := httptest.NewServer(adapter)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/game/demo"
	conn := dialJSON(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"kind": "action", "requestId": "r1"}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "protocolViolation", env.Error.Code)

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, CloseProtocolViolation, closeErr.Code)
}

func TestJoinThenActionRoundTrip(t *testing.T) {
	registry := testRegistry(t)
	router := realm.NewRouter(registry, true)
	adapter := NewAdapter(router, AdapterConfig{DefaultEncoding: syncengine.EncodingJSON})

	server := httptest.NewServer(adapter)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/game/demo"
	conn := dialJSON(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"kind": "join",
		"payload": map[string]any{
			"landType": "demo",
			"clientId": "p1",
		},
	}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var joinResp joinResponseEnvelope
	require.NoError(t, json.Unmarshal(data, &joinResp))
	assert.True(t, joinResp.Success)
	assert.Equal(t, "p1", joinResp.PlayerID)

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var firstSyncEnv wireEnvelope
	require.NoError(t, json.Unmarshal(data, &firstSyncEnv))
	assert.Equal(t, "firstSync", firstSyncEnv.Kind)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"kind":      "action",
		"requestId": "r1",
		"payload":   map[string]any{"type": "ping"},
	}))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var actionResp actionResponseEnvelope
	require.NoError(t, json.Unmarshal(data, &actionResp))
	assert.True(t, actionResp.Success)
	assert.Equal(t, "r1", actionResp.RequestID)
	assert.Equal(t, "pong", actionResp.Result)
}

func TestJoinMissingInstanceNoAutoCreateReturnsLandNotFound(t *testing.T) {
	registry := testRegistry(t)
	router := realm.NewRouter(registry, false)
	adapter := NewAdapter(router, AdapterConfig{DefaultEncoding: syncengine.EncodingJSON})

	server := httptest.NewServer(adapter)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/game/demo"
	conn := dialJSON(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"kind": "join",
		"payload": map[string]any{
			"landType":   "demo",
			"instanceId": "missing",
			"clientId":   "p1",
		},
	}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var joinResp joinResponseEnvelope
	require.NoError(t, json.Unmarshal(data, &joinResp))
	assert.False(t, joinResp.Success)
	assert.Equal(t, "landNotFound", joinResp.Reason)

	// Session remains open for retry (spec §8 scenario 1).
	require.NoError(t, conn.WriteJSON(map[string]any{
		"kind": "join",
		"payload": map[string]any{
			"landType": "demo",
			"clientId": "p1",
		},
	}))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &joinResp))
	assert.True(t, joinResp.Success)
}

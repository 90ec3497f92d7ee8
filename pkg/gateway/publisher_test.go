package gateway

import (
	"encoding/json"
	"testing"

	"landkeeper/pkg/matchmaking"
)

func TestRedisPublisher_DeliverDispatchesKick(t *testing.T) {
	var kicked string
	p := &RedisPublisher{hub: NewHub(), onKick: func(userID string) { kicked = userID }}

	payload, err := json.Marshal(broadcastMessage{Type: msgTypeKick, UserID: "user-9"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	p.deliver(string(payload))

	if kicked != "user-9" {
		t.Errorf("onKick called with %q, want %q", kicked, "user-9")
	}
}

func TestRedisPublisher_DeliverDispatchesMatchAssigned(t *testing.T) {
	hub := NewHub()
	p := &RedisPublisher{hub: hub}

	envelope := matchmaking.NewMatchAssignedEnvelope("ticket-1", &matchmaking.Assignment{AssignmentID: "a-1"})
	payload, err := json.Marshal(broadcastMessage{Type: msgTypeMatchAssigned, TicketID: "ticket-1", Envelope: &envelope})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// No local connection registered; deliver should be a no-op, not a panic.
	p.deliver(string(payload))
}

func TestBroadcastMessage_CompatibleWithClusterKickShape(t *testing.T) {
	// gateway and cluster independently encode kick messages onto the
	// same cd:inbox:<nodeId> channel; their JSON shapes must agree on
	// "type" and "userId".
	data := []byte(`{"type":"kick","userId":"user-5"}`)

	var msg broadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Type != msgTypeKick || msg.UserID != "user-5" {
		t.Errorf("unexpected decode: %+v", msg)
	}
}

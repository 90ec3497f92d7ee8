package gateway

import (
	"landkeeper/pkg/matchmaking"
	"testing"
)

func TestHub_DeliverLocal_NoConnectionReturnsFalse(t *testing.T) {
	hub := NewHub()
	envelope := matchmaking.NewMatchAssignedEnvelope("ticket-1", &matchmaking.Assignment{AssignmentID: "a-1"})

	if hub.DeliverLocal("ticket-1", envelope) {
		t.Error("expected DeliverLocal to report no local connection")
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	hub.register("ticket-1", nil)
	if _, ok := hub.conns["ticket-1"]; !ok {
		t.Fatal("expected ticket-1 to be registered")
	}

	hub.unregister("ticket-1")
	if _, ok := hub.conns["ticket-1"]; ok {
		t.Error("expected ticket-1 to be unregistered")
	}
}

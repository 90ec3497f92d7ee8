package provisioning

import (
	"testing"
	"time"
)

func TestServerEntry_ConnectURL(t *testing.T) {
	tests := []struct {
		name string
		e    ServerEntry
		want string
	}{
		{
			name: "default ws scheme",
			e:    ServerEntry{ConnectHost: "game-1.example.com", ConnectPort: 8080},
			want: "ws://game-1.example.com:8080/realm/duel/duel:abc",
		},
		{
			name: "443 upgrades to wss",
			e:    ServerEntry{ConnectHost: "game-1.example.com", ConnectPort: 443},
			want: "wss://game-1.example.com:443/realm/duel/duel:abc",
		},
		{
			name: "falls back to Host when ConnectHost is unset",
			e:    ServerEntry{Host: "10.0.0.5", ConnectPort: 8080},
			want: "ws://10.0.0.5:8080/realm/duel/duel:abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.ConnectURL("duel", "duel:abc")
			if got != tt.want {
				t.Errorf("ConnectURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerEntry_Supports(t *testing.T) {
	e := ServerEntry{LandTypes: []string{"arena", "duel"}}
	if !e.supports("arena") {
		t.Error("expected supports(\"arena\") to be true")
	}
	if e.supports("raid") {
		t.Error("expected supports(\"raid\") to be false")
	}
}

func TestServerEntry_Stale(t *testing.T) {
	now := time.Now()
	fresh := ServerEntry{LastSeenAt: now.Add(-10 * time.Second)}
	stale := ServerEntry{LastSeenAt: now.Add(-StalenessCutoff - time.Second)}

	if fresh.stale(now) {
		t.Error("expected a recently-heartbeat server to not be stale")
	}
	if !stale.stale(now) {
		t.Error("expected a server past the staleness cutoff to be stale")
	}
}

func TestServerEntry_OverCapacity(t *testing.T) {
	under := ServerEntry{LandCount: SoftCapacity - 1}
	over := ServerEntry{LandCount: SoftCapacity}

	if under.overCapacity() {
		t.Error("expected a server under soft capacity to not be overCapacity")
	}
	if !over.overCapacity() {
		t.Error("expected a server at soft capacity to be overCapacity")
	}
}

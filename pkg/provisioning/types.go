package provisioning

import (
	"fmt"
	"time"
)

// SoftCapacity bounds how many lands pickServer will route to a single
// server before treating it as full for selection purposes (spec §4.5
// "avoiding those over soft capacity").
const SoftCapacity = 64

// StalenessCutoff is how long a server entry is honored without a
// fresh heartbeat before pickServer treats it as unhealthy.
const StalenessCutoff = 90 * time.Second

// ServerEntry is one gameserver process's provisioning registration
// (spec §4.5 "Provisioning Registry").
type ServerEntry struct {
	ServerID    string    `json:"serverId"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	ConnectHost string    `json:"connectHost"`
	ConnectPort int       `json:"connectPort"`
	LandTypes   []string  `json:"landTypes"`
	LandCount   int       `json:"landCount"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// ConnectURL derives a client-facing websocket URL for a land hosted on
// this server (spec §6 "connectUrl scheme defaults to wss if
// connectPort is 443, otherwise ws").
func (e ServerEntry) ConnectURL(landType, landID string) string {
	scheme := "ws"
	if e.ConnectPort == 443 {
		scheme = "wss"
	}
	host := e.ConnectHost
	if host == "" {
		host = e.Host
	}
	return fmt.Sprintf("%s://%s:%d/realm/%s/%s", scheme, host, e.ConnectPort, landType, landID)
}

func (e ServerEntry) supports(landType string) bool {
	for _, lt := range e.LandTypes {
		if lt == landType {
			return true
		}
	}
	return false
}

func (e ServerEntry) stale(now time.Time) bool {
	return now.Sub(e.LastSeenAt) > StalenessCutoff
}

func (e ServerEntry) overCapacity() bool {
	return e.LandCount >= SoftCapacity
}

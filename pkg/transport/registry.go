package transport

import "sync"

// SessionRegistry tracks a node's live sessions by clientID so a
// cluster-directory kick (spec §4.5 "single-login lease/kick") can
// close the right connection without the Adapter needing to know
// anything about Redis or node inboxes.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry builds an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) register(clientID string, session *Session) {
	if clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[clientID] = session
}

func (r *SessionRegistry) unregister(clientID string, session *Session) {
	if clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[clientID]; ok && current == session {
		delete(r.sessions, clientID)
	}
}

// CloseByClientID closes the locally-held session for clientID, if
// any, returning whether a session was found.
func (r *SessionRegistry) CloseByClientID(clientID string, code int, reason string) bool {
	r.mu.RLock()
	session, ok := r.sessions[clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	session.Close(code, reason)
	return true
}

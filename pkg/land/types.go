package land

import (
	"time"

	"landkeeper/pkg/syncengine"
)

// PlayerID re-exports syncengine.PlayerID so land-definition authors do not
// need to import both packages for the same concept.
type PlayerID = syncengine.PlayerID

// SessionID identifies one WebSocket session for the lifetime of its
// connection (spec §3 "Session" — "Lifetime = WebSocket lifetime").
type SessionID string

// Session is the transport-level identity attached to a land on join. It
// is created by the TransportAdapter on WebSocket accept and passed
// unchanged into CanJoin/OnJoin/OnLeave.
type Session struct {
	SessionID SessionID
	ClientID  string
	DeviceID  string
	Metadata  map[string]any
}

// EventDirection distinguishes client-originated from server-originated
// events on the wire (spec §4.3 "Events carry a direction").
type EventDirection int

const (
	FromClient EventDirection = iota
	FromServer
)

// ServerEvent is a fire-and-forget server-to-client notification.
type ServerEvent struct {
	Type    string
	Payload any
}

// EventTargetKind names the four ways sendServerEvent may select recipients.
type EventTargetKind int

const (
	TargetAllKind EventTargetKind = iota
	TargetSessionKind
	TargetPlayerKind
	TargetFilterKind
)

// EventTarget selects which sessions receive a ServerEvent.
type EventTarget struct {
	Kind      EventTargetKind
	SessionID SessionID
	PlayerID  PlayerID
	Filter    func(s *Session, playerID PlayerID) bool
}

// TargetAll selects every attached session.
func TargetAll() EventTarget { return EventTarget{Kind: TargetAllKind} }

// TargetSession selects exactly the named session.
func TargetSession(id SessionID) EventTarget {
	return EventTarget{Kind: TargetSessionKind, SessionID: id}
}

// TargetPlayer selects the session currently bound to the named player id.
func TargetPlayer(id PlayerID) EventTarget {
	return EventTarget{Kind: TargetPlayerKind, PlayerID: id}
}

// TargetFilter selects every session for which fn returns true.
func TargetFilter(fn func(s *Session, playerID PlayerID) bool) EventTarget {
	return EventTarget{Kind: TargetFilterKind, Filter: fn}
}

// Outbound is the transport-side sink a keeper delivers events and state
// updates through. TransportAdapter implements this; tests may supply a
// fake. Every method must be safe to call from the keeper's single
// mailbox goroutine without blocking on slow consumers indefinitely — the
// transport is responsible for backpressure/coalescing (spec §4.3).
type Outbound interface {
	DeliverEvent(sessionID SessionID, event ServerEvent) error
	DeliverSnapshot(sessionID SessionID, snapshot syncengine.StateSnapshot) error
	DeliverUpdate(sessionID SessionID, update *syncengine.StateUpdate) error
	Disconnect(sessionID SessionID, code int, reason string) error
}

// ActionHandler runs a request/response action. The returned response is
// serialized into the actionResponse envelope; a non-nil error becomes a
// typed dispatch error (spec §4.2 "submitAction").
type ActionHandler func(state map[string]any, ctx *LandContext, payload []byte) (response any, err error)

// ClientEventHandler runs a fire-and-forget client event. Errors are
// logged and dropped; they never reach the client (spec §4.2
// "submitClientEvent").
type ClientEventHandler func(state map[string]any, ctx *LandContext, payload []byte)

// CanJoinFunc decides whether session may join, and under which PlayerID.
// A non-nil error (typically a *JoinError) rejects the join.
type CanJoinFunc func(state map[string]any, session *Session, ctx *JoinContext) (PlayerID, error)

// JoinContext is passed to CanJoin; it carries join-time metadata that is
// not yet backed by an attached session (there is no PlayerID yet).
type JoinContext struct {
	LandID       string
	InstanceID   string
	RequestedID  PlayerID // optional PlayerID suggested by the join payload
	Now          time.Time
	SessionCount int
}

// LifecycleFunc runs OnJoin/OnLeave side effects.
type LifecycleFunc func(state map[string]any, ctx *LandContext)

// TickHandlerFunc runs once per tick before the sync cycle.
type TickHandlerFunc func(state map[string]any, ctx *LandContext) error

// Definition is a land type's fixed configuration: schema, tick config,
// and handler tables. One Definition is shared by every instance of its
// land type; it must not be mutated after registration.
type Definition struct {
	// ID is the land type identifier (spec glossary "Land type").
	ID string

	// Schema declares the state tree's fields and sync policies.
	Schema *syncengine.Schema

	// InitialState constructs a fresh state tree for a new instance.
	InitialState func() map[string]any

	// TickInterval is the fixed period between tick fires (spec §4.2,
	// e.g. 50ms).
	TickInterval time.Duration

	// TickHandler runs once per tick, before the sync cycle.
	TickHandler TickHandlerFunc

	// MaxEmptyTicks bounds how many consecutive ticks the keeper keeps
	// running with zero attached sessions before self-retiring. Zero means
	// unbounded (the realm's retirement grace governs instead).
	MaxEmptyTicks int

	// CanJoin decides whether a session may join and under what PlayerID.
	CanJoin CanJoinFunc

	// OnJoin/OnLeave run lifecycle side effects after a join is accepted,
	// or before a player is removed.
	OnJoin  LifecycleFunc
	OnLeave LifecycleFunc

	// ActionHandlers maps a typeIdentifier to its request/response handler.
	ActionHandlers map[string]ActionHandler

	// ClientEventHandlers maps a typeIdentifier to its fire-and-forget handler.
	ClientEventHandlers map[string]ClientEventHandler

	// MaxSessions caps concurrent joined players; zero means unbounded.
	MaxSessions int
}

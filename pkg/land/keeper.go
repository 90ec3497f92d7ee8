package land

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"landkeeper/pkg/syncengine"

	"github.com/sirupsen/logrus"
)

type command func()

type sessionRecord struct {
	session  *Session
	playerID PlayerID
	outbound Outbound
}

type scheduledTimer struct {
	fireAt time.Time
	fn     func(state map[string]any, ctx *LandContext)
}

// Stats is a point-in-time, externally-readable snapshot of a keeper's
// lifecycle state, used by the admin surface and the realm's retirement
// sweep.
type Stats struct {
	SessionCount   int
	Tick           uint64
	CreatedAt      time.Time
	LastActivityAt time.Time
	// Idle is true when SessionCount has been zero continuously since
	// IdleSince.
	Idle      bool
	IdleSince time.Time
}

// Keeper is the single-consumer actor owning one land instance's state
// tree, tick loop, and dispatch (spec §4.2 "LandKeeper"). All state
// mutation for this instance flows through its mailbox.
type Keeper struct {
	def        *Definition
	instanceID string

	state  map[string]any
	engine *syncengine.Engine
	rng    *RNG

	mailbox chan command
	doneCh  chan struct{}
	retired bool

	sessions       map[SessionID]*sessionRecord
	playerSessions map[PlayerID]SessionID

	tick          uint64
	nextTickAt    time.Time
	scheduled     []scheduledTimer
	emptyTickRun  int
	createdAt     time.Time
	lastActivity  time.Time

	tickAtomic atomic.Uint64

	statsMu sync.Mutex
	stats   Stats

	log *logrus.Entry
}

// MailboxCapacity is the bounded FIFO size for inbound commands (spec §5
// "Concurrent sessions submit into a bounded FIFO").
const MailboxCapacity = 256

// NewKeeper constructs a Keeper for one instance of def, seeded with seed
// for its deterministic RNG. The keeper does not start ticking until
// Start is called.
func NewKeeper(def *Definition, instanceID string, seed int64) (*Keeper, error) {
	if def == nil {
		return nil, fmt.Errorf("land: nil definition")
	}
	if def.ID == "" {
		return nil, fmt.Errorf("land: definition ID must not be empty")
	}
	if def.Schema == nil {
		return nil, fmt.Errorf("land: definition %s: schema is required", def.ID)
	}
	if def.InitialState == nil {
		return nil, fmt.Errorf("land: definition %s: InitialState is required", def.ID)
	}
	if def.CanJoin == nil {
		return nil, fmt.Errorf("land: definition %s: CanJoin is required", def.ID)
	}
	if def.TickInterval <= 0 {
		return nil, fmt.Errorf("land: definition %s: TickInterval must be positive", def.ID)
	}

	now := time.Now()
	k := &Keeper{
		def:            def,
		instanceID:     instanceID,
		state:          def.InitialState(),
		engine:         syncengine.NewEngine(def.Schema),
		rng:            NewRNG(seed),
		mailbox:        make(chan command, MailboxCapacity),
		doneCh:         make(chan struct{}),
		sessions:       make(map[SessionID]*sessionRecord),
		playerSessions: make(map[PlayerID]SessionID),
		createdAt:      now,
		lastActivity:   now,
		log: logrus.WithFields(logrus.Fields{
			"component":  "land",
			"landType":   def.ID,
			"instanceId": instanceID,
		}),
	}
	k.refreshStatsLocked()
	return k, nil
}

// LandID returns the "landType:instanceId" identifier for this instance.
func (k *Keeper) LandID() string {
	return k.def.ID + ":" + k.instanceID
}

// LandType returns the land type identifier.
func (k *Keeper) LandType() string { return k.def.ID }

// InstanceID returns the instance identifier.
func (k *Keeper) InstanceID() string { return k.instanceID }

// Seed returns the RNG seed this keeper was constructed with, for
// persisting replay headers.
func (k *Keeper) Seed() int64 { return k.rng.Seed() }

// CurrentTick returns the keeper's tick counter. Safe for concurrent
// callers; backed by an atomic updated from the mailbox goroutine.
func (k *Keeper) CurrentTick() uint64 { return k.tickAtomic.Load() }

// Stats returns a snapshot of the keeper's lifecycle state.
func (k *Keeper) Stats() Stats {
	k.statsMu.Lock()
	defer k.statsMu.Unlock()
	return k.stats
}

// Start launches the keeper's mailbox/tick loop in its own goroutine.
func (k *Keeper) Start() {
	k.nextTickAt = time.Now().Add(k.def.TickInterval)
	go k.run()
}

func (k *Keeper) run() {
	defer close(k.doneCh)

	timer := time.NewTimer(time.Until(k.nextTickAt))
	defer timer.Stop()

	for {
		select {
		case cmd, ok := <-k.mailbox:
			if !ok {
				return
			}
			cmd()
			if k.retired {
				return
			}
		case <-timer.C:
			k.fireTick()
			// Absorb drift by scheduling from the previous fire time, not
			// from now (spec §4.2 "Tick loop").
			k.nextTickAt = k.nextTickAt.Add(k.def.TickInterval)
			if k.retired {
				return
			}
			timer.Reset(time.Until(k.nextTickAt))
		}
	}
}

func (k *Keeper) enqueue(cmd command) error {
	select {
	case k.mailbox <- cmd:
		return nil
	case <-k.doneCh:
		return ErrKeeperRetired
	}
}

func (k *Keeper) enqueueCtx(ctx context.Context, cmd command) error {
	select {
	case k.mailbox <- cmd:
		return nil
	case <-k.doneCh:
		return ErrKeeperRetired
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *Keeper) newContext(playerID PlayerID, sessionID SessionID) *LandContext {
	return &LandContext{
		PlayerID:  playerID,
		SessionID: sessionID,
		Tick:      k.tick,
		Now:       time.Now(),
		RNG:       k.rng,
		keeper:    k,
	}
}

// Join admits session into the land, invoking CanJoin and, on success,
// OnJoin and the player's initial sync (spec §4.2 "join").
func (k *Keeper) Join(session *Session, outbound Outbound, payload []byte) (PlayerID, error) {
	type result struct {
		playerID PlayerID
		err      error
	}
	resultCh := make(chan result, 1)
	if err := k.enqueue(func() {
		pid, err := k.doJoin(session, outbound)
		resultCh <- result{pid, err}
	}); err != nil {
		return "", err
	}
	r := <-resultCh
	return r.playerID, r.err
}

func (k *Keeper) doJoin(session *Session, outbound Outbound) (PlayerID, error) {
	if k.def.MaxSessions > 0 && len(k.sessions) >= k.def.MaxSessions {
		return "", ErrRoomFull
	}

	joinCtx := &JoinContext{
		LandID:       k.LandID(),
		InstanceID:   k.instanceID,
		Now:          time.Now(),
		SessionCount: len(k.sessions),
	}
	playerID, err := k.def.CanJoin(k.state, session, joinCtx)
	if err != nil {
		return "", err
	}
	if _, exists := k.playerSessions[playerID]; exists {
		return "", ErrDuplicateLogin
	}

	rec := &sessionRecord{session: session, playerID: playerID, outbound: outbound}
	k.sessions[session.SessionID] = rec
	k.playerSessions[playerID] = session.SessionID
	k.lastActivity = time.Now()

	ctx := k.newContext(playerID, session.SessionID)
	if k.def.OnJoin != nil {
		k.def.OnJoin(k.state, ctx)
	}

	k.syncOne(session.SessionID, rec)
	k.refreshStatsLocked()

	k.log.WithFields(logrus.Fields{"playerId": playerID, "sessionId": session.SessionID}).Info("player joined")
	return playerID, nil
}

// Leave removes session from the land, invoking OnLeave (spec §4.2 "leave").
func (k *Keeper) Leave(sessionID SessionID) error {
	return k.enqueue(func() { k.doLeave(sessionID) })
}

func (k *Keeper) doLeave(sessionID SessionID) {
	rec, ok := k.sessions[sessionID]
	if !ok {
		return
	}

	ctx := k.newContext(rec.playerID, sessionID)
	if k.def.OnLeave != nil {
		k.def.OnLeave(k.state, ctx)
	}

	delete(k.sessions, sessionID)
	delete(k.playerSessions, rec.playerID)
	k.engine.Forget(rec.playerID)
	k.lastActivity = time.Now()
	k.refreshStatsLocked()

	k.log.WithFields(logrus.Fields{"playerId": rec.playerID, "sessionId": sessionID}).Info("player left")
}

// SubmitAction decodes and dispatches a request/response action, honoring
// ctx's deadline (spec §4.2 "submitAction", §5 "Cancellation & timeouts").
func (k *Keeper) SubmitAction(ctx context.Context, sessionID SessionID, typeIdent string, payload []byte) (any, error) {
	type result struct {
		resp any
		err  error
	}
	resultCh := make(chan result, 1)

	if err := k.enqueueCtx(ctx, func() {
		resp, err := k.doSubmitAction(sessionID, typeIdent, payload)
		resultCh <- result{resp, err}
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ErrActionTimeout
	}
}

func (k *Keeper) doSubmitAction(sessionID SessionID, typeIdent string, payload []byte) (resp any, err error) {
	rec, ok := k.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotJoined
	}
	handler, ok := k.def.ActionHandlers[typeIdent]
	if !ok {
		return nil, errUnknownAction(typeIdent)
	}

	ctx := k.newContext(rec.playerID, sessionID)

	defer func() {
		if r := recover(); r != nil {
			k.log.WithFields(logrus.Fields{"typeIdent": typeIdent, "panic": r}).Error("action handler panicked")
			resp, err = nil, errHandlerError(fmt.Errorf("panic: %v", r))
		}
	}()

	resp, hErr := handler(k.state, ctx, payload)
	k.lastActivity = time.Now()
	if hErr != nil {
		return nil, errHandlerError(hErr)
	}
	return resp, nil
}

// SubmitClientEvent dispatches a fire-and-forget client event (spec §4.2
// "submitClientEvent"). Handler errors are logged and dropped.
func (k *Keeper) SubmitClientEvent(sessionID SessionID, typeIdent string, payload []byte) error {
	return k.enqueue(func() { k.doSubmitClientEvent(sessionID, typeIdent, payload) })
}

func (k *Keeper) doSubmitClientEvent(sessionID SessionID, typeIdent string, payload []byte) {
	rec, ok := k.sessions[sessionID]
	if !ok {
		return
	}
	handler, ok := k.def.ClientEventHandlers[typeIdent]
	if !ok {
		k.log.WithField("typeIdent", typeIdent).Warn("dropping client event: no handler registered")
		return
	}

	ctx := k.newContext(rec.playerID, sessionID)
	defer func() {
		if r := recover(); r != nil {
			k.log.WithFields(logrus.Fields{"typeIdent": typeIdent, "panic": r}).Error("client event handler panicked, dropping event")
		}
	}()
	handler(k.state, ctx, payload)
	k.lastActivity = time.Now()
}

// dispatchEvent delivers a ServerEvent to the sessions selected by target.
// Called from within the mailbox goroutine only (via LandContext.SendEvent).
func (k *Keeper) dispatchEvent(event ServerEvent, target EventTarget) {
	switch target.Kind {
	case TargetAllKind:
		for sessionID, rec := range k.sessions {
			k.deliverEvent(sessionID, rec, event)
		}
	case TargetSessionKind:
		if rec, ok := k.sessions[target.SessionID]; ok {
			k.deliverEvent(target.SessionID, rec, event)
		}
	case TargetPlayerKind:
		if sessionID, ok := k.playerSessions[target.PlayerID]; ok {
			if rec, ok := k.sessions[sessionID]; ok {
				k.deliverEvent(sessionID, rec, event)
			}
		}
	case TargetFilterKind:
		for sessionID, rec := range k.sessions {
			if target.Filter(rec.session, rec.playerID) {
				k.deliverEvent(sessionID, rec, event)
			}
		}
	}
}

func (k *Keeper) deliverEvent(sessionID SessionID, rec *sessionRecord, event ServerEvent) {
	if err := rec.outbound.DeliverEvent(sessionID, event); err != nil {
		k.log.WithFields(logrus.Fields{"sessionId": sessionID, "error": err}).Warn("failed to deliver server event")
	}
}

// scheduleTimer registers a one-shot closure to run after the given delay,
// coalesced into the tick loop (spec §4.2 "schedule(after, closure)").
func (k *Keeper) scheduleTimer(after time.Duration, fn func(state map[string]any, ctx *LandContext)) {
	k.scheduled = append(k.scheduled, scheduledTimer{fireAt: time.Now().Add(after), fn: fn})
}

func (k *Keeper) runScheduledTimers() {
	if len(k.scheduled) == 0 {
		return
	}
	now := time.Now()
	remaining := k.scheduled[:0]
	for _, t := range k.scheduled {
		if now.Before(t.fireAt) {
			remaining = append(remaining, t)
			continue
		}
		ctx := k.newContext("", "")
		t.fn(k.state, ctx)
	}
	k.scheduled = remaining
}

// runSyncCycle asks the engine for each attached session's update and
// delivers it through the transport (spec §4.2 "run the sync cycle").
func (k *Keeper) runSyncCycle() {
	for sessionID, rec := range k.sessions {
		k.syncOne(sessionID, rec)
	}
}

func (k *Keeper) syncOne(sessionID SessionID, rec *sessionRecord) {
	update := k.engine.Diff(k.state, &rec.playerID)
	switch update.Kind {
	case syncengine.NoChange:
		return
	case syncengine.FirstSync:
		snapshot := k.engine.Snapshot(k.state, &rec.playerID)
		if err := rec.outbound.DeliverSnapshot(sessionID, snapshot); err != nil {
			k.log.WithFields(logrus.Fields{"sessionId": sessionID, "error": err}).Warn("failed to deliver snapshot")
		}
	case syncengine.Diff:
		if err := rec.outbound.DeliverUpdate(sessionID, update); err != nil {
			k.log.WithFields(logrus.Fields{"sessionId": sessionID, "error": err}).Warn("failed to deliver update")
		}
	}
}

func (k *Keeper) fireTick() {
	k.tick++
	k.tickAtomic.Store(k.tick)

	if k.def.TickHandler != nil {
		ctx := k.newContext("", "")
		if err := k.def.TickHandler(k.state, ctx); err != nil {
			k.log.WithError(err).Error("tick handler failed, retiring land")
			k.retireLocked("tickHandlerError")
			return
		}
	}

	k.runScheduledTimers()
	k.runSyncCycle()

	if len(k.sessions) == 0 && k.def.MaxEmptyTicks > 0 {
		k.emptyTickRun++
		if k.emptyTickRun >= k.def.MaxEmptyTicks {
			k.retireLocked("maxEmptyTicks")
			return
		}
	} else {
		k.emptyTickRun = 0
	}

	k.refreshStatsLocked()
}

// Retire forcibly retires the keeper, disconnecting all attached sessions
// with a terminal code (spec §4.2 "An unrecoverable error ... retires the
// land and disconnects its sessions", §4.4 "Retirement").
func (k *Keeper) Retire(reason string) {
	done := make(chan struct{})
	if err := k.enqueue(func() {
		k.retireLocked(reason)
		close(done)
	}); err != nil {
		return
	}
	select {
	case <-done:
	case <-k.doneCh:
	}
}

func (k *Keeper) retireLocked(reason string) {
	if k.retired {
		return
	}
	k.retired = true
	for sessionID, rec := range k.sessions {
		if err := rec.outbound.Disconnect(sessionID, 4000, "land retired: "+reason); err != nil {
			k.log.WithFields(logrus.Fields{"sessionId": sessionID, "error": err}).Warn("failed to disconnect session on retirement")
		}
	}
	k.sessions = make(map[SessionID]*sessionRecord)
	k.playerSessions = make(map[PlayerID]SessionID)
	k.refreshStatsLocked()
	k.log.WithField("reason", reason).Info("land retired")
}

// Retired reports whether the keeper has already retired.
func (k *Keeper) Retired() bool {
	select {
	case <-k.doneCh:
		return true
	default:
		return false
	}
}

func (k *Keeper) refreshStatsLocked() {
	k.statsMu.Lock()
	defer k.statsMu.Unlock()

	idle := len(k.sessions) == 0
	idleSince := k.stats.IdleSince
	if idle && !k.stats.Idle {
		idleSince = time.Now()
	}
	if !idle {
		idleSince = time.Time{}
	}

	k.stats = Stats{
		SessionCount:   len(k.sessions),
		Tick:           k.tick,
		CreatedAt:      k.createdAt,
		LastActivityAt: k.lastActivity,
		Idle:           idle,
		IdleSince:      idleSince,
	}
}

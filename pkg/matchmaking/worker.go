package matchmaking

import (
	"context"
	"time"

	"landkeeper/pkg/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Worker runs the matching tick: it pulls queued tickets per queueKey,
// asks a Strategy for matchable groups, allocates a land for each group
// through a Provisioner, mints match tokens, and publishes the result
// (spec §4.5 "Matching tick").
type Worker struct {
	store       *Store
	strategy    Strategy
	provisioner Provisioner
	issuer      *TokenIssuer
	publisher   Publisher
	cfg         *config.Config
	metrics     Metrics
}

// Metrics receives matching-tick observability events. nil is safe
// and simply skips recording; pkg/server.Metrics implements it.
type Metrics interface {
	RecordTickDuration(d time.Duration)
	RecordAssignment()
}

// SetMetrics attaches a Metrics sink for tick duration and assignment
// counts. Optional; call before Run.
func (w *Worker) SetMetrics(m Metrics) {
	w.metrics = m
}

// NewWorker builds a Worker. strategy selects the matching algorithm;
// pass NewFillGroupStrategy() for group-size-aware queueKeys (e.g.
// "duel:2v2") or NewDefaultStrategy() for solo-ticket land types.
func NewWorker(store *Store, strategy Strategy, provisioner Provisioner, issuer *TokenIssuer, publisher Publisher, cfg *config.Config) *Worker {
	return &Worker{
		store:       store,
		strategy:    strategy,
		provisioner: provisioner,
		issuer:      issuer,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Run drives the matching tick on config.MatchmakingTickInterval until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.MatchmakingTickInterval)
	defer ticker.Stop()

	logrus.WithField("interval", w.cfg.MatchmakingTickInterval).Info("matchmaking worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("matchmaking worker stopping")
			return
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				logrus.WithError(err).Warn("matchmaking tick failed")
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordTickDuration(time.Since(start))
		}
	}()

	queueKeys, err := w.store.QueueKeys(ctx)
	if err != nil {
		return err
	}

	for _, qk := range queueKeys {
		if err := w.tickQueue(ctx, qk); err != nil {
			logrus.WithError(err).WithField("queueKey", qk).Warn("matchmaking queue tick failed")
		}
	}
	return nil
}

func (w *Worker) tickQueue(ctx context.Context, qk string) error {
	tickets, err := w.store.QueuedTickets(ctx, qk)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return nil
	}

	landType, groupSize := ParseQueueKey(qk)
	cfg := GroupConfig{
		GroupSize:    groupSize,
		MinWaitMs:    w.cfg.MatchmakingMinWaitMs,
		RelaxAfterMs: w.cfg.MatchmakingRelaxAfterMs,
	}

	groups := w.strategy.FindMatchableGroups(tickets, cfg, time.Now())
	for _, group := range groups {
		if err := w.allocate(ctx, landType, group); err != nil {
			logrus.WithError(err).WithField("landType", landType).Warn("matchmaking allocation failed")
		}
	}
	return nil
}

func (w *Worker) allocate(ctx context.Context, landType string, group []*Ticket) error {
	landID := landType + ":" + uuid.NewString()

	serverID, connectURL, err := w.provisioner.Allocate(landType, landID)
	if err != nil {
		return err
	}

	assignment := &Assignment{
		AssignmentID: uuid.NewString(),
		LandType:     landType,
		LandID:       landID,
		ServerID:     serverID,
		ConnectURL:   connectURL,
		CreatedAt:    time.Now(),
	}

	var userIDs []string
	for _, ticket := range group {
		for _, playerID := range ticket.Members {
			token, err := w.issuer.Mint(assignment.AssignmentID, playerID, landID)
			if err != nil {
				return err
			}
			assignment.Members = append(assignment.Members, MemberAssignment{PlayerID: playerID, Token: token})
			userIDs = append(userIDs, playerID)
		}
	}

	if err := w.store.MarkMatched(ctx, group, assignment); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.RecordAssignment()
	}

	for _, ticket := range group {
		envelope := NewMatchAssignedEnvelope(ticket.TicketID, assignment)
		if err := w.publisher.PublishAssigned(ticket.TicketID, ticket.Members, envelope); err != nil {
			logrus.WithError(err).WithField("ticketId", ticket.TicketID).Warn("matchmaking publish failed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"landType":     landType,
		"landId":       landID,
		"assignmentId": assignment.AssignmentID,
		"serverId":     serverID,
		"members":      len(userIDs),
	}).Info("matchmaking group allocated")

	return nil
}

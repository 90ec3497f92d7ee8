package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"landkeeper/pkg/integration"

	"github.com/redis/go-redis/v9"
)

// Store is the Redis-backed ticket store (spec §4.5 "Queue & store",
// spec §6 "Persisted state layout").
type Store struct {
	rdb *redis.Client
}

// NewStore wraps a redis.Client as a matchmaking Store.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func ticketKey(ticketID string) string { return "mm:ticket:" + ticketID }
func queueKey(queueKey string) string  { return "mm:queue:" + queueKey }
func groupKey(groupID string) string   { return "mm:group:" + groupID }

// Enqueue writes a new ticket to the store and its queue index. If
// ticket.GroupID already maps to a queued ticket, Enqueue returns that
// existing ticket instead of creating a duplicate (spec §4.5
// "Deduplication").
func (s *Store) Enqueue(ctx context.Context, ticket *Ticket) (*Ticket, error) {
	var result *Ticket

	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		if ticket.GroupID != "" {
			existingID, err := s.rdb.Get(ctx, groupKey(ticket.GroupID)).Result()
			if err != nil && err != redis.Nil {
				return fmt.Errorf("matchmaking: group lookup failed: %w", err)
			}
			if existingID != "" {
				existing, err := s.get(ctx, existingID)
				if err == nil && existing.Status == StatusQueued {
					result = existing
					return nil
				}
			}
		}

		ticket.Status = StatusQueued
		if ticket.EnqueuedAt.IsZero() {
			ticket.EnqueuedAt = time.Now()
		}

		data, err := json.Marshal(ticket)
		if err != nil {
			return fmt.Errorf("matchmaking: marshal ticket: %w", err)
		}

		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, ticketKey(ticket.TicketID), data, 0)
		pipe.SAdd(ctx, queueKey(ticket.QueueKey), ticket.TicketID)
		if ticket.GroupID != "" {
			pipe.Set(ctx, groupKey(ticket.GroupID), ticket.TicketID, 0)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("matchmaking: enqueue failed: %w", err)
		}

		result = ticket
		return nil
	})

	return result, err
}

// Cancel marks a queued ticket cancelled and removes it from its queue
// index (spec §4.5 "cancel sets status to cancelled, removes from
// indices").
func (s *Store) Cancel(ctx context.Context, ticketID string) (bool, error) {
	var cancelled bool

	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		ticket, err := s.get(ctx, ticketID)
		if err != nil {
			if err == redis.Nil {
				return nil
			}
			return err
		}
		if ticket.Status != StatusQueued {
			return nil
		}

		ticket.Status = StatusCancelled
		data, err := json.Marshal(ticket)
		if err != nil {
			return fmt.Errorf("matchmaking: marshal ticket: %w", err)
		}

		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, ticketKey(ticketID), data, 0)
		pipe.SRem(ctx, queueKey(ticket.QueueKey), ticketID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("matchmaking: cancel failed: %w", err)
		}

		cancelled = true
		return nil
	})

	return cancelled, err
}

// Get returns a ticket by id.
func (s *Store) Get(ctx context.Context, ticketID string) (*Ticket, error) {
	var ticket *Ticket
	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		t, err := s.get(ctx, ticketID)
		if err != nil {
			return err
		}
		ticket = t
		return nil
	})
	return ticket, err
}

func (s *Store) get(ctx context.Context, ticketID string) (*Ticket, error) {
	data, err := s.rdb.Get(ctx, ticketKey(ticketID)).Bytes()
	if err != nil {
		return nil, err
	}
	var ticket Ticket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, fmt.Errorf("matchmaking: unmarshal ticket: %w", err)
	}
	return &ticket, nil
}

// QueuedTickets returns every queued ticket indexed under queueKey, in
// arbitrary order (the caller is responsible for FIFO ordering via
// EnqueuedAt).
func (s *Store) QueuedTickets(ctx context.Context, qk string) ([]*Ticket, error) {
	var tickets []*Ticket

	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		ids, err := s.rdb.SMembers(ctx, queueKey(qk)).Result()
		if err != nil {
			return fmt.Errorf("matchmaking: list queue %s: %w", qk, err)
		}
		for _, id := range ids {
			t, err := s.get(ctx, id)
			if err == redis.Nil {
				s.rdb.SRem(ctx, queueKey(qk), id)
				continue
			}
			if err != nil {
				return err
			}
			if t.Status == StatusQueued {
				tickets = append(tickets, t)
			}
		}
		return nil
	})

	return tickets, err
}

// QueueKeys returns every queueKey with at least one queued ticket,
// scanned from the mm:queue:* keyspace. Keys come back in Redis SCAN
// order; neither QueueKeys nor the worker rotates that order between ticks.
func (s *Store) QueueKeys(ctx context.Context) ([]string, error) {
	var keys []string

	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		iter := s.rdb.Scan(ctx, 0, "mm:queue:*", 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val()[len("mm:queue:"):])
		}
		return iter.Err()
	})

	return keys, err
}

// MarkMatched records a group's tickets as matched with the given
// assignment and removes them from their queue index.
func (s *Store) MarkMatched(ctx context.Context, group []*Ticket, assignment *Assignment) error {
	return integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		pipe := s.rdb.TxPipeline()
		for _, ticket := range group {
			ticket.Status = StatusMatched
			ticket.Assignment = assignment
			data, err := json.Marshal(ticket)
			if err != nil {
				return fmt.Errorf("matchmaking: marshal matched ticket: %w", err)
			}
			pipe.Set(ctx, ticketKey(ticket.TicketID), data, 0)
			pipe.SRem(ctx, queueKey(ticket.QueueKey), ticket.TicketID)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

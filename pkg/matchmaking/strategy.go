package matchmaking

import (
	"sort"
	"time"
)

// GroupConfig carries the per-tick timing knobs a Strategy needs,
// derived from config.Config (spec §4.5 "Config derivation").
type GroupConfig struct {
	GroupSize    int
	MinWaitMs    int64
	RelaxAfterMs int64
}

// Strategy partitions queued tickets into groups ready for allocation.
// A returned group is consumed whole: every ticket in it transitions to
// matched together.
type Strategy interface {
	Name() string
	FindMatchableGroups(tickets []*Ticket, cfg GroupConfig, now time.Time) [][]*Ticket
}

func sortByAge(tickets []*Ticket) []*Ticket {
	sorted := make([]*Ticket, len(tickets))
	copy(sorted, tickets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EnqueuedAt.Before(sorted[j].EnqueuedAt)
	})
	return sorted
}

func waitedMs(ticket *Ticket, now time.Time) int64 {
	return now.Sub(ticket.EnqueuedAt).Milliseconds()
}

// defaultStrategy treats every ticket that has waited at least MinWaitMs
// as a matchable group of one (spec §4.5 "default strategy").
type defaultStrategy struct{}

// NewDefaultStrategy returns the "default" matching strategy.
func NewDefaultStrategy() Strategy { return defaultStrategy{} }

func (defaultStrategy) Name() string { return "default" }

func (defaultStrategy) FindMatchableGroups(tickets []*Ticket, cfg GroupConfig, now time.Time) [][]*Ticket {
	var groups [][]*Ticket
	for _, t := range sortByAge(tickets) {
		if waitedMs(t, now) >= cfg.MinWaitMs {
			groups = append(groups, []*Ticket{t})
		}
	}
	return groups
}

// fillGroupStrategy aggregates tickets FIFO until a queueKey's derived
// group size is reached, relaxing to whatever is available once the
// oldest member of a partial group has waited past RelaxAfterMs (spec
// §4.5 "fillGroup strategy").
type fillGroupStrategy struct{}

// NewFillGroupStrategy returns the "fillGroup" matching strategy.
func NewFillGroupStrategy() Strategy { return fillGroupStrategy{} }

func (fillGroupStrategy) Name() string { return "fillGroup" }

func (fillGroupStrategy) FindMatchableGroups(tickets []*Ticket, cfg GroupConfig, now time.Time) [][]*Ticket {
	size := cfg.GroupSize
	if size < 1 {
		size = 1
	}

	sorted := sortByAge(tickets)
	var groups [][]*Ticket
	var pending []*Ticket

	for _, t := range sorted {
		pending = append(pending, t)
		if len(pending) == size {
			groups = append(groups, pending)
			pending = nil
		}
	}

	if len(pending) > 0 && waitedMs(pending[0], now) >= cfg.RelaxAfterMs {
		groups = append(groups, pending)
	}

	return groups
}

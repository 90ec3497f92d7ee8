package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"landkeeper/pkg/config"
	"landkeeper/pkg/integration"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const serverTTL = 90 * time.Second

func serverEntryKey(serverID string) string { return "srv:" + serverID }

// Registry is the Redis-backed provisioning registry (spec §4.5
// "Provisioning Registry"). It implements matchmaking.Provisioner.
type Registry struct {
	rdb     *redis.Client
	counter atomic.Uint64
}

// NewRegistry wraps a redis.Client as a provisioning Registry.
func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Register upserts a server's heartbeat entry with a TTL refresh (spec
// §4.5 "heartbeat/TTL").
func (r *Registry) Register(ctx context.Context, entry ServerEntry) error {
	entry.LastSeenAt = time.Now()

	return integration.ExecuteProvisioningOperation(ctx, func(ctx context.Context) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("provisioning: marshal server entry: %w", err)
		}
		if err := r.rdb.Set(ctx, serverEntryKey(entry.ServerID), data, serverTTL).Err(); err != nil {
			return fmt.Errorf("provisioning: register server %s: %w", entry.ServerID, err)
		}
		return nil
	})
}

// Deregister removes a server's entry immediately, e.g. on graceful
// shutdown.
func (r *Registry) Deregister(ctx context.Context, serverID string) error {
	return integration.ExecuteProvisioningOperation(ctx, func(ctx context.Context) error {
		return r.rdb.Del(ctx, serverEntryKey(serverID)).Err()
	})
}

// List returns every non-expired server entry.
func (r *Registry) List(ctx context.Context) ([]ServerEntry, error) {
	var entries []ServerEntry

	err := integration.ExecuteProvisioningOperation(ctx, func(ctx context.Context) error {
		iter := r.rdb.Scan(ctx, 0, "srv:*", 0).Iterator()
		for iter.Next(ctx) {
			data, err := r.rdb.Get(ctx, iter.Val()).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return err
			}
			var entry ServerEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("provisioning: unmarshal server entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return iter.Err()
	})

	return entries, err
}

// SeedFromConfig registers the static bootstrap entries loaded via
// config.LoadServerSeeds, so pickServer has candidates before any real
// gameserver has sent its first heartbeat.
func (r *Registry) SeedFromConfig(ctx context.Context, seeds []config.ServerSeed) error {
	for _, seed := range seeds {
		entry := ServerEntry{
			ServerID:    seed.ServerID,
			Host:        seed.Host,
			Port:        seed.Port,
			ConnectHost: seed.ConnectHost,
			ConnectPort: seed.ConnectPort,
			LandTypes:   seed.LandTypes,
		}
		if entry.ConnectHost == "" {
			entry.ConnectHost = entry.Host
		}
		if entry.ConnectPort == 0 {
			entry.ConnectPort = entry.Port
		}
		if err := r.Register(ctx, entry); err != nil {
			return fmt.Errorf("provisioning: seed server %s: %w", seed.ServerID, err)
		}
	}
	logrus.WithField("count", len(seeds)).Info("provisioning registry seeded")
	return nil
}

// PickServer selects a healthy server advertising landType using
// round-robin among eligible candidates, skipping those over soft
// capacity or past the staleness cutoff, with ties broken by
// lastSeenAt ascending (spec §4.5 "pickServer policy").
func (r *Registry) PickServer(ctx context.Context, landType string) (ServerEntry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return ServerEntry{}, err
	}

	now := time.Now()
	var candidates []ServerEntry
	for _, e := range entries {
		if !e.supports(landType) {
			continue
		}
		if e.stale(now) || e.overCapacity() {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) == 0 {
		return ServerEntry{}, fmt.Errorf("provisioning: no healthy server advertises land type %q", landType)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastSeenAt.Before(candidates[j].LastSeenAt)
	})

	idx := (r.counter.Add(1) - 1) % uint64(len(candidates))
	return candidates[idx], nil
}

// Allocate implements matchmaking.Provisioner: it picks a healthy
// server for landType and derives the connect URL for the given
// landID.
func (r *Registry) Allocate(landType, landID string) (serverID, connectURL string, err error) {
	entry, err := r.PickServer(context.Background(), landType)
	if err != nil {
		return "", "", err
	}
	return entry.ServerID, entry.ConnectURL(landType, landID), nil
}

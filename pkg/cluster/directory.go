package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"landkeeper/pkg/integration"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func userLeaseKey(userID string) string { return "cd:user:" + userID }

// InboxChannel returns the per-node pub/sub channel name for nodeID.
func InboxChannel(nodeID string) string { return "cd:inbox:" + nodeID }

// KickMessage is published to a node's inbox channel instructing it to
// close its local connection for a userId (spec §4.5 "single-login
// lease/kick").
type KickMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Directory is the Redis-backed cluster directory enforcing
// single-login across gateway nodes.
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDirectory builds a Directory with the given lease TTL.
func NewDirectory(rdb *redis.Client, ttl time.Duration) *Directory {
	return &Directory{rdb: rdb, ttl: ttl}
}

// Acquire claims the userId lease for nodeID. If another node already
// holds the lease, Acquire takes it over and then publishes a kick
// message to that node's inbox, returning the previous holder's nodeId (or
// "" if this is a fresh acquisition).
func (d *Directory) Acquire(ctx context.Context, userID, nodeID string) (previousNodeID string, err error) {
	err = integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		prev, getErr := d.rdb.Get(ctx, userLeaseKey(userID)).Result()
		if getErr != nil && getErr != redis.Nil {
			return fmt.Errorf("cluster: lease lookup for %s: %w", userID, getErr)
		}

		if err := d.rdb.Set(ctx, userLeaseKey(userID), nodeID, d.ttl).Err(); err != nil {
			return fmt.Errorf("cluster: lease acquire for %s: %w", userID, err)
		}

		if prev != "" && prev != nodeID {
			previousNodeID = prev
			if err := d.publishKick(ctx, prev, userID); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"userId":   userID,
					"prevNode": prev,
				}).Warn("cluster: failed to publish kick for duplicate login")
			}
		}
		return nil
	})
	return previousNodeID, err
}

// Renew extends the lease TTL for a session still connected to nodeID.
// It is a no-op (returns nil) if nodeID no longer holds the lease,
// since that means a newer login has already taken over.
func (d *Directory) Renew(ctx context.Context, userID, nodeID string) error {
	return integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		current, err := d.rdb.Get(ctx, userLeaseKey(userID)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cluster: lease renew lookup for %s: %w", userID, err)
		}
		if current != nodeID {
			return nil
		}
		return d.rdb.Expire(ctx, userLeaseKey(userID), d.ttl).Err()
	})
}

// HolderNode returns the nodeId currently holding userId's lease, or ""
// if no node holds it.
func (d *Directory) HolderNode(ctx context.Context, userID string) (string, error) {
	var holder string
	err := integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		node, err := d.rdb.Get(ctx, userLeaseKey(userID)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cluster: holder lookup for %s: %w", userID, err)
		}
		holder = node
		return nil
	})
	return holder, err
}

// Release drops the lease for userId if nodeID still holds it, e.g. on
// clean disconnect.
func (d *Directory) Release(ctx context.Context, userID, nodeID string) error {
	return integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		current, err := d.rdb.Get(ctx, userLeaseKey(userID)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cluster: lease release lookup for %s: %w", userID, err)
		}
		if current != nodeID {
			return nil
		}
		return d.rdb.Del(ctx, userLeaseKey(userID)).Err()
	})
}

func (d *Directory) publishKick(ctx context.Context, nodeID, userID string) error {
	msg := KickMessage{Type: "kick", UserID: userID}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cluster: marshal kick message: %w", err)
	}
	return d.rdb.Publish(ctx, InboxChannel(nodeID), data).Err()
}

// Subscribe opens a subscription to nodeID's inbox channel. Callers
// range over the returned channel's Channel() to receive KickMessages
// (and any future inbox message types) destined for this node.
func (d *Directory) Subscribe(ctx context.Context, nodeID string) *redis.PubSub {
	return d.rdb.Subscribe(ctx, InboxChannel(nodeID))
}

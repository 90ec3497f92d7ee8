package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"landkeeper/pkg/cluster"
	"landkeeper/pkg/integration"
	"landkeeper/pkg/matchmaking"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// broadcastChannel is the shared pub/sub channel every gateway node
// subscribes to when config.UseNodeInboxForMatchAssigned is false
// (spec §4.5 "Realtime push").
const broadcastChannel = "matchmaking:assigned"

type broadcastMessage struct {
	Type     string                              `json:"type"`
	TicketID string                              `json:"ticketId"`
	Envelope *matchmaking.MatchAssignedEnvelope  `json:"envelope,omitempty"`
	UserID   string                              `json:"userId,omitempty"`
}

const (
	msgTypeMatchAssigned = "match.assigned"
	msgTypeKick          = "kick"
)

// RedisPublisher implements matchmaking.Publisher by fanning a
// match.assigned envelope out to whichever gateway node holds the
// player's connection. Its inbox subscription doubles as the consumer
// for cluster.Directory's single-login kick messages, since both share
// the per-node cd:inbox:<nodeId> channel (spec §4.5 "single-login
// lease/kick").
type RedisPublisher struct {
	rdb          *redis.Client
	hub          *Hub
	directory    *cluster.Directory
	nodeID       string
	useNodeInbox bool
	onKick       func(userID string)
}

// NewRedisPublisher builds a RedisPublisher. When useNodeInbox is true,
// PublishAssigned looks up each member's node via directory and
// publishes to that node's inbox channel instead of broadcasting.
// onKick is invoked for every "kick" message arriving on this node's
// inbox channel; pass transport.SessionRegistry.CloseByClientID-backed
// callback to close the superseded session locally.
func NewRedisPublisher(rdb *redis.Client, hub *Hub, directory *cluster.Directory, nodeID string, useNodeInbox bool, onKick func(userID string)) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, hub: hub, directory: directory, nodeID: nodeID, useNodeInbox: useNodeInbox, onKick: onKick}
}

// PublishAssigned implements matchmaking.Publisher.
func (p *RedisPublisher) PublishAssigned(ticketID string, userIDs []string, envelope matchmaking.MatchAssignedEnvelope) error {
	ctx := context.Background()

	if p.hub.DeliverLocal(ticketID, envelope) {
		return nil
	}

	if p.useNodeInbox {
		return p.publishToHolders(ctx, userIDs, ticketID, envelope)
	}
	return p.broadcast(ctx, ticketID, envelope)
}

func (p *RedisPublisher) broadcast(ctx context.Context, ticketID string, envelope matchmaking.MatchAssignedEnvelope) error {
	msg := broadcastMessage{Type: msgTypeMatchAssigned, TicketID: ticketID, Envelope: &envelope}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("gateway: marshal broadcast message: %w", err)
	}
	return integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
		return p.rdb.Publish(ctx, broadcastChannel, data).Err()
	})
}

func (p *RedisPublisher) publishToHolders(ctx context.Context, userIDs []string, ticketID string, envelope matchmaking.MatchAssignedEnvelope) error {
	msg := broadcastMessage{Type: msgTypeMatchAssigned, TicketID: ticketID, Envelope: &envelope}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("gateway: marshal inbox message: %w", err)
	}

	var lastErr error
	for _, userID := range userIDs {
		node, err := p.directory.HolderNode(ctx, userID)
		if err != nil {
			lastErr = err
			continue
		}
		if node == "" || node == p.nodeID {
			continue
		}
		err = integration.ExecuteRedisOperation(ctx, func(ctx context.Context) error {
			return p.rdb.Publish(ctx, cluster.InboxChannel(node), data).Err()
		})
		if err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SubscribeBroadcast runs a blocking loop delivering broadcast channel
// messages to this node's Hub until ctx is cancelled.
func (p *RedisPublisher) SubscribeBroadcast(ctx context.Context) {
	sub := p.rdb.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			p.deliver(msg.Payload)
		}
	}
}

// SubscribeInbox runs a blocking loop delivering this node's inbox
// channel messages to its Hub until ctx is cancelled.
func (p *RedisPublisher) SubscribeInbox(ctx context.Context) {
	sub := p.directory.Subscribe(ctx, p.nodeID)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			p.deliver(msg.Payload)
		}
	}
}

func (p *RedisPublisher) deliver(payload string) {
	var msg broadcastMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logrus.WithError(err).Warn("gateway: failed to decode pub/sub message")
		return
	}

	switch msg.Type {
	case msgTypeKick:
		if p.onKick != nil {
			p.onKick(msg.UserID)
		}
	case msgTypeMatchAssigned:
		if msg.Envelope != nil {
			p.hub.DeliverLocal(msg.TicketID, *msg.Envelope)
		}
	default:
		if msg.Envelope != nil {
			p.hub.DeliverLocal(msg.TicketID, *msg.Envelope)
		}
	}
}

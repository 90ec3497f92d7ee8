// Package arena provides a minimal reference land type used to exercise
// the realm registry, the transport adapter, and the matchmaking control
// plane end to end (spec §8 boundary scenarios reference an "arena"
// queueKey). It is intentionally small: up to MaxPlayers players join, each may
// submit a "move" action that nudges a per-player position, and the tick
// handler broadcasts the current tick count.
package arena

import (
	"encoding/json"
	"fmt"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/syncengine"

	"github.com/sirupsen/logrus"
)

// LandType is the registered identifier for this land type.
const LandType = "arena"

// MaxPlayers bounds concurrent sessions in one arena instance.
const MaxPlayers = 8

// NewDefinition builds the arena land.Definition for registration with a
// realm.Registry.
func NewDefinition() (*land.Definition, error) {
	schema, err := syncengine.NewSchema(LandType, []*syncengine.FieldSchema{
		{Name: "tick", Kind: syncengine.KindPrimitive, Policy: syncengine.PolicyBroadcast},
		{Name: "positions", Kind: syncengine.KindMapping, Policy: syncengine.PolicyBroadcast},
	})
	if err != nil {
		return nil, err
	}

	return &land.Definition{
		ID:     LandType,
		Schema: schema,
		InitialState: func() map[string]any {
			return map[string]any{
				"tick":      uint64(0),
				"positions": map[string]any{},
			}
		},
		TickInterval: 50 * time.Millisecond,
		MaxSessions:  MaxPlayers,
		TickHandler: func(state map[string]any, ctx *land.LandContext) error {
			state["tick"] = ctx.Tick
			return nil
		},
		CanJoin: func(state map[string]any, session *land.Session, ctx *land.JoinContext) (land.PlayerID, error) {
			if ctx.SessionCount >= MaxPlayers {
				return "", land.ErrRoomFull
			}
			return land.PlayerID(session.ClientID), nil
		},
		OnJoin: func(state map[string]any, ctx *land.LandContext) {
			positions := state["positions"].(map[string]any)
			positions[string(ctx.PlayerID)] = map[string]any{"x": 0, "y": 0}
			logrus.WithFields(logrus.Fields{
				"landType": LandType,
				"playerId": ctx.PlayerID,
			}).Debug("player joined arena")
		},
		OnLeave: func(state map[string]any, ctx *land.LandContext) {
			positions := state["positions"].(map[string]any)
			delete(positions, string(ctx.PlayerID))
		},
		ActionHandlers: map[string]land.ActionHandler{
			"move": handleMove,
		},
		ClientEventHandlers: map[string]land.ClientEventHandler{
			"ping": func(state map[string]any, ctx *land.LandContext, payload []byte) {},
		},
	}, nil
}

type movePayload struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func handleMove(state map[string]any, ctx *land.LandContext, payload []byte) (any, error) {
	move, err := decodeMove(payload)
	if err != nil {
		return nil, err
	}

	positions := state["positions"].(map[string]any)
	pos, ok := positions[string(ctx.PlayerID)].(map[string]any)
	if !ok {
		pos = map[string]any{"x": 0, "y": 0}
	}
	pos["x"] = pos["x"].(int) + move.DX
	pos["y"] = pos["y"].(int) + move.DY
	positions[string(ctx.PlayerID)] = pos

	return pos, nil
}

func decodeMove(payload []byte) (movePayload, error) {
	var move movePayload
	if len(payload) == 0 {
		return move, nil
	}
	if err := json.Unmarshal(payload, &move); err != nil {
		return move, fmt.Errorf("arena: invalid move payload: %w", err)
	}
	return move, nil
}

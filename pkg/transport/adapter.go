package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/realm"
	"landkeeper/pkg/syncengine"
	"landkeeper/pkg/validation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultActionTimeout is the deadline applied to an action when the
// adapter's config leaves it unset (spec §5 "a configurable default
// deadline (e.g. 5 s)").
const DefaultActionTimeout = 5 * time.Second

// TokenValidator validates a match token carried on the WebSocket query
// string and returns the fully-qualified land id ("landType:instanceId")
// it binds the connection to (spec §6 "the optional token query carries a
// match token ... validates signature against the control plane's JWKS").
type TokenValidator func(token string) (landID string, err error)

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	AllowedOrigins  []string
	DefaultEncoding syncengine.Encoding
	ActionTimeout   time.Duration
	TokenValidator  TokenValidator
	Recorder        ActionRecorder
	MaxPayloadSize  int64
	Sessions        *SessionRegistry
}

// Adapter is the TransportAdapter: an http.Handler that upgrades to
// WebSocket, negotiates encoding, and bridges each connection's envelopes
// to the land resolved by Router (spec §4.3).
type Adapter struct {
	router          *realm.Router
	allowedOrigins  []string
	defaultEncoding syncengine.Encoding
	actionTimeout   time.Duration
	tokenValidator  TokenValidator
	recorder        ActionRecorder
	validator       *validation.EnvelopeValidator
	sessions        *SessionRegistry

	log *logrus.Entry
}

// NewAdapter constructs an Adapter routing joins through router.
func NewAdapter(router *realm.Router, cfg AdapterConfig) *Adapter {
	encoding := cfg.DefaultEncoding
	if encoding == "" {
		encoding = syncengine.EncodingMessagePack
	}
	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return &Adapter{
		router:          router,
		allowedOrigins:  cfg.AllowedOrigins,
		defaultEncoding: encoding,
		actionTimeout:   timeout,
		tokenValidator:  cfg.TokenValidator,
		recorder:        cfg.Recorder,
		validator:       validation.NewEnvelopeValidator(cfg.MaxPayloadSize),
		sessions:        cfg.Sessions,
		log:             logrus.WithField("component", "transport"),
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.TrimSpace(a) == origin || strings.TrimSpace(a) == "*" {
			return true
		}
	}
	return false
}

func (a *Adapter) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			allowed := isOriginAllowed(origin, a.allowedOrigins)
			if !allowed {
				a.log.WithFields(logrus.Fields{"origin": origin}).Warn("websocket connection rejected: origin not allowed")
			}
			return allowed
		},
	}
}

// ServeHTTP implements http.Handler. The request's URL path is used
// verbatim to resolve the land type via the Router (spec §6 "Game
// WebSocket (/game/<landType>[?landId=...&token=...])").
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsPath := r.URL.Path
	landType, ok := a.router.LandTypeForPath(wsPath)
	if !ok {
		http.Error(w, "unknown land type", http.StatusNotFound)
		return
	}

	encoding := a.defaultEncoding
	if q := r.URL.Query().Get("encoding"); q != "" {
		if _, err := syncengine.NewCodec(syncengine.Encoding(q)); err == nil {
			encoding = syncengine.Encoding(q)
		}
	}
	codec, err := syncengine.NewCodec(encoding)
	if err != nil {
		http.Error(w, "invalid encoding", http.StatusBadRequest)
		return
	}

	upgrader := a.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sessionID := land.SessionID(uuid.NewString())
	session := newSession(sessionID, conn, codec, a.actionTimeout)

	instanceID := r.URL.Query().Get("landId")
	token := r.URL.Query().Get("token")

	a.readLoop(session, wsPath, landType, instanceID, token, encoding)
}

func (a *Adapter) readLoop(session *Session, wsPath, landType, queryInstanceID, queryToken string, encoding syncengine.Encoding) {
	defer session.Close(websocket.CloseNormalClosure, "connection closed")
	defer func() {
		if a.sessions != nil && session.clientID != "" {
			a.sessions.unregister(session.clientID, session)
		}
	}()

	joined := false
	for {
		messageType, data, err := session.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := decodeInbound(data, messageType, encoding)
		if err != nil {
			a.sendError(session, "decodeFailed", err.Error(), false)
			session.Close(CloseProtocolViolation, "malformed envelope")
			return
		}

		if !joined {
			if env.Kind != KindJoin {
				a.sendError(session, "protocolViolation", "only a join envelope is permitted before joining", false)
				session.Close(CloseProtocolViolation, "protocol violation: expected join")
				return
			}
			ok := a.handleJoin(session, env, wsPath, landType, queryInstanceID, queryToken)
			if !ok {
				continue // join rejected; session remains open for retry (spec §8 scenario 1)
			}
			joined = true
			continue
		}

		switch env.Kind {
		case KindAction:
			a.handleAction(session, env)
		case KindEvent:
			a.handleEvent(session, env)
		default:
			a.sendError(session, "protocolViolation", fmt.Sprintf("unexpected envelope kind %q after join", env.Kind), false)
			session.Close(CloseProtocolViolation, "unexpected envelope kind")
			return
		}
	}
}

func (a *Adapter) handleJoin(session *Session, env *inboundEnvelope, wsPath, landType, queryInstanceID, queryToken string) bool {
	var payload joinPayload
	if err := decodePayload(env.Payload, &payload); err != nil {
		a.sendJoinResponse(session, false, "", "decodeFailed", err.Error())
		return false
	}
	if err := a.validator.ValidateJoin(landType, payload.InstanceID, payload.ClientID, payload.DeviceID, payload.Metadata); err != nil {
		a.sendJoinResponse(session, false, "", "validationFailed", err.Error())
		return false
	}

	instanceID := payload.InstanceID
	if instanceID == "" {
		instanceID = queryInstanceID
	}
	token := payload.Token
	if token == "" {
		token = queryToken
	}

	if token != "" {
		if a.tokenValidator == nil {
			a.sendJoinResponse(session, false, "", "unauthorized", "match tokens are not accepted on this server")
			session.Close(CloseUnauthorized, "match tokens not supported")
			return false
		}
		boundLandID, err := a.tokenValidator(token)
		if err != nil {
			a.sendJoinResponse(session, false, "", "unauthorized", "invalid match token")
			session.Close(CloseUnauthorized, "invalid match token")
			return false
		}
		boundType, boundInstance, ok := splitLandID(boundLandID)
		if !ok || boundType != landType {
			a.sendJoinResponse(session, false, "", "unauthorized", "token does not bind this land")
			session.Close(CloseUnauthorized, "token/land mismatch")
			return false
		}
		instanceID = boundInstance
	}

	k, err := a.router.Route(wsPath, instanceID, map[string]any{"metadata": payload.Metadata})
	if err != nil {
		code, message := joinErrorDetails(err)
		a.sendJoinResponse(session, false, "", code, message)
		return false
	}

	domainSession := &land.Session{
		SessionID: session.id,
		ClientID:  payload.ClientID,
		DeviceID:  payload.DeviceID,
		Metadata:  payload.Metadata,
	}

	playerID, err := k.Join(domainSession, session, nil)
	if err != nil {
		code, message := joinErrorDetails(err)
		a.sendJoinResponse(session, false, "", code, message)
		return false
	}

	session.keeper = k
	session.playerID = playerID
	session.joined = true
	session.clientID = payload.ClientID

	session.recorder = a.recorder
	if a.recorder != nil {
		a.recorder.RecordJoin(landType, k.InstanceID(), k.Seed(), k.CurrentTick(), string(session.id), payload.ClientID)
	}
	if a.sessions != nil {
		a.sessions.register(payload.ClientID, session)
	}

	a.sendJoinResponse(session, true, string(playerID), "", "")
	return true
}

func joinErrorDetails(err error) (code, message string) {
	if je, ok := err.(*land.JoinError); ok {
		return je.Code, je.Message
	}
	return "custom", err.Error()
}

func splitLandID(id string) (landType, instanceID string, ok bool) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (a *Adapter) sendJoinResponse(session *Session, success bool, playerID, reason, message string) {
	frame, err := encodeEnvelope(joinResponseEnvelope{
		Kind:     KindJoinResponse,
		V:        EnvelopeVersion,
		Success:  success,
		PlayerID: playerID,
		Encoding: string(session.encoding),
		Reason:   reason,
		Message:  message,
	}, session.encoding)
	if err != nil {
		a.log.WithError(err).Error("failed to encode joinResponse")
		return
	}
	session.enqueueCritical(frame)
}

func (a *Adapter) handleAction(session *Session, env *inboundEnvelope) {
	var payload actionPayload
	if err := decodePayload(env.Payload, &payload); err != nil {
		a.sendActionResponse(session, env.RequestID, nil, "decodeFailed", err.Error())
		return
	}
	if err := a.validator.ValidateAction(payload.TypeIdentifier, payload.Data); err != nil {
		a.sendActionResponse(session, env.RequestID, nil, "validationFailed", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), session.actionTimeout)
	defer cancel()

	resp, err := session.keeper.SubmitAction(ctx, session.id, payload.TypeIdentifier, payload.Data)
	if err != nil {
		code, message := dispatchErrorDetails(err)
		a.sendActionResponse(session, env.RequestID, nil, code, message)
		return
	}
	if a.recorder != nil {
		k := session.keeper
		a.recorder.RecordAction(k.LandType(), k.InstanceID(), k.Seed(), k.CurrentTick(), string(session.id), payload.TypeIdentifier, payload.Data)
	}
	a.sendActionResponse(session, env.RequestID, resp, "", "")
}

func dispatchErrorDetails(err error) (code, message string) {
	if de, ok := err.(*land.DispatchError); ok {
		return de.Code, de.Message
	}
	if err == land.ErrActionTimeout {
		return "timeout", "action exceeded its deadline"
	}
	return "handlerError", err.Error()
}

func (a *Adapter) sendActionResponse(session *Session, requestID string, result any, errCode, errMessage string) {
	env := actionResponseEnvelope{
		Kind:      KindActionResponse,
		V:         EnvelopeVersion,
		RequestID: requestID,
		Success:   errCode == "",
		Result:    result,
	}
	if errCode != "" {
		env.Error = &envelopeError{Code: errCode, Message: errMessage, Retryable: errCode == "timeout"}
	}
	frame, err := encodeEnvelope(env, session.encoding)
	if err != nil {
		a.log.WithError(err).Error("failed to encode actionResponse")
		return
	}
	session.enqueueCritical(frame)
}

func (a *Adapter) handleEvent(session *Session, env *inboundEnvelope) {
	var payload eventPayload
	if err := decodePayload(env.Payload, &payload); err != nil {
		a.log.WithError(err).Debug("dropping malformed client event")
		return
	}
	if err := a.validator.ValidateEvent(payload.TypeIdentifier, payload.Data); err != nil {
		a.log.WithError(err).Debug("dropping invalid client event")
		return
	}
	if err := session.keeper.SubmitClientEvent(session.id, payload.TypeIdentifier, payload.Data); err != nil {
		a.log.WithError(err).Debug("failed to enqueue client event")
		return
	}
	if a.recorder != nil {
		k := session.keeper
		a.recorder.RecordEvent(k.LandType(), k.InstanceID(), k.Seed(), k.CurrentTick(), string(session.id), payload.TypeIdentifier, payload.Data)
	}
}

func (a *Adapter) sendError(session *Session, code, message string, retryable bool) {
	frame, err := encodeEnvelope(errorEnvelope{
		Kind:  KindError,
		V:     EnvelopeVersion,
		Error: envelopeError{Code: code, Message: message, Retryable: retryable},
	}, session.encoding)
	if err != nil {
		return
	}
	session.enqueueCritical(frame)
}

func decodeInbound(data []byte, messageType int, encoding syncengine.Encoding) (*inboundEnvelope, error) {
	var env inboundEnvelope
	if encoding == syncengine.EncodingMessagePack || messageType == websocket.BinaryMessage {
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return &env, nil
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

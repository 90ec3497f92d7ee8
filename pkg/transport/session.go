package transport

import (
	"sync"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/syncengine"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// OutboundQueueCapacity bounds the number of non-coalescible frames
// (snapshot, event, joinResponse, actionResponse, error) queued for one
// session before it is judged a slow consumer (spec §4.3 "Backpressure").
const OutboundQueueCapacity = 64

// Session owns one WebSocket connection end-to-end: it implements
// land.Outbound so a keeper can deliver through it directly, and it runs
// the read loop that turns inbound frames into keeper calls (spec §4.3
// "TransportAdapter / Session").
type Session struct {
	id     land.SessionID
	conn   *websocket.Conn
	writeMu sync.Mutex

	codec    syncengine.Codec
	encoding syncengine.Encoding

	queue      chan []byte
	diffSignal chan struct{}
	diffMu     sync.Mutex
	pendingDiff []byte

	closeOnce sync.Once
	doneCh    chan struct{}

	keeper   *land.Keeper
	playerID land.PlayerID
	joined   bool
	clientID string
	recorder ActionRecorder

	actionTimeout time.Duration

	log *logrus.Entry
}

func newSession(id land.SessionID, conn *websocket.Conn, codec syncengine.Codec, actionTimeout time.Duration) *Session {
	s := &Session{
		id:            id,
		conn:          conn,
		codec:         codec,
		encoding:      codec.Encoding(),
		queue:         make(chan []byte, OutboundQueueCapacity),
		diffSignal:    make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
		actionTimeout: actionTimeout,
		log:           logrus.WithFields(logrus.Fields{"component": "transport", "sessionId": string(id)}),
	}
	go s.writeLoop()
	return s
}

// writeLoop is the session's single writer goroutine; gorilla/websocket
// connections are not safe for concurrent writers, so every frame funnels
// through here (grounded on the teacher's wsConnection mutex wrapper,
// generalized to a dedicated goroutine for coalescing).
func (s *Session) writeLoop() {
	for {
		select {
		case frame, ok := <-s.queue:
			if !ok {
				return
			}
			if err := s.writeFrame(frame); err != nil {
				s.log.WithError(err).Warn("write failed, closing session")
				s.Close(CloseInternal, "write failed")
				return
			}
		case <-s.diffSignal:
			s.diffMu.Lock()
			frame := s.pendingDiff
			s.pendingDiff = nil
			s.diffMu.Unlock()
			if frame == nil {
				continue
			}
			if err := s.writeFrame(frame); err != nil {
				s.log.WithError(err).Warn("write failed, closing session")
				s.Close(CloseInternal, "write failed")
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *Session) writeFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	messageType := websocket.TextMessage
	if s.encoding == syncengine.EncodingMessagePack {
		messageType = websocket.BinaryMessage
	}
	return s.conn.WriteMessage(messageType, frame)
}

// enqueueCritical queues a non-coalescible frame. If the queue is full the
// session is closed as a slow consumer (spec §4.3 "a frame that cannot be
// coalesced and would overflow closes the session").
func (s *Session) enqueueCritical(frame []byte) {
	select {
	case s.queue <- frame:
	default:
		s.log.Warn("outbound queue overflow on non-coalescible frame, closing as slow consumer")
		s.Close(CloseSlowConsumer, "slow consumer")
	}
}

// enqueueDiff replaces any not-yet-written pending diff with frame, so a
// slow consumer never backs up more than one stale diff (spec §4.3
// "a diff when a newer diff has already been enqueued" is coalesced).
func (s *Session) enqueueDiff(frame []byte) {
	s.diffMu.Lock()
	s.pendingDiff = frame
	s.diffMu.Unlock()
	select {
	case s.diffSignal <- struct{}{}:
	default:
	}
}

// DeliverEvent implements land.Outbound.
func (s *Session) DeliverEvent(sessionID land.SessionID, event land.ServerEvent) error {
	frame, err := encodeEnvelope(eventEnvelope{Kind: KindEvent, V: EnvelopeVersion, Type: event.Type, Payload: event.Payload}, s.encoding)
	if err != nil {
		return err
	}
	s.enqueueCritical(frame)
	return nil
}

// DeliverSnapshot implements land.Outbound. The first sync is always sent
// as a full, non-coalescible frame (spec §8 "S receives one firstSync
// envelope before any diff envelope").
func (s *Session) DeliverSnapshot(sessionID land.SessionID, snapshot syncengine.StateSnapshot) error {
	body, err := s.codec.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	// Snapshots are wrapped in a distinguished "firstSync" frame so the
	// client can tell it apart from a diff without inspecting shape.
	frame, err := encodeSnapshotFrame(body, s.encoding)
	if err != nil {
		return err
	}
	s.enqueueCritical(frame)
	return nil
}

// DeliverUpdate implements land.Outbound. Diffs are coalescible.
func (s *Session) DeliverUpdate(sessionID land.SessionID, update *syncengine.StateUpdate) error {
	body, err := s.codec.EncodeUpdate(update)
	if err != nil {
		return err
	}
	frame, err := encodeDiffFrame(body, s.encoding)
	if err != nil {
		return err
	}
	s.enqueueDiff(frame)
	return nil
}

// Disconnect implements land.Outbound.
func (s *Session) Disconnect(sessionID land.SessionID, code int, reason string) error {
	s.Close(code, reason)
	return nil
}

// Close closes the session's WebSocket exactly once, sending a close
// frame with code/reason first.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.doneCh)
		s.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.writeMu.Unlock()
		_ = s.conn.Close()
		if s.joined && s.keeper != nil {
			if s.recorder != nil {
				k := s.keeper
				s.recorder.RecordLeave(k.LandType(), k.InstanceID(), k.Seed(), k.CurrentTick(), string(s.id))
			}
			_ = s.keeper.Leave(s.id)
		}
	})
}

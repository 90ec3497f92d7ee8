package transport

import "encoding/json"

// EnvelopeVersion is the current wire version for server-pushed envelopes
// (spec §6 "Envelope versioning" — "All server-pushed envelopes carry
// v: <int>").
const EnvelopeVersion = 1

// EnvelopeKind names one of the six envelope shapes exchanged over the
// game WebSocket (spec §4.3 "Envelope kinds").
type EnvelopeKind string

const (
	KindJoin           EnvelopeKind = "join"
	KindJoinResponse   EnvelopeKind = "joinResponse"
	KindAction         EnvelopeKind = "action"
	KindActionResponse EnvelopeKind = "actionResponse"
	KindEvent          EnvelopeKind = "event"
	KindError          EnvelopeKind = "error"
)

// inboundEnvelope is the minimal shape read off the wire before dispatch.
// Payload decodes generically (works for both JSON and MessagePack maps);
// decodePayload re-marshals it to the kind-specific payload struct once
// Kind is known, so the two wire encodings share one decode path.
type inboundEnvelope struct {
	Kind      EnvelopeKind   `json:"kind" msgpack:"kind"`
	RequestID string         `json:"requestId,omitempty" msgpack:"requestId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// decodePayload re-marshals a generically-decoded payload map into a
// kind-specific struct.
func decodePayload(payload map[string]any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// joinPayload is the payload of a join envelope.
type joinPayload struct {
	LandType   string         `json:"landType"`
	InstanceID string         `json:"instanceId,omitempty"`
	ClientID   string         `json:"clientId"`
	DeviceID   string         `json:"deviceId,omitempty"`
	Token      string         `json:"token,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// actionPayload is the payload of an action envelope.
type actionPayload struct {
	TypeIdentifier string          `json:"type"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// eventPayload is the payload of a client-originated event envelope.
type eventPayload struct {
	TypeIdentifier string          `json:"type"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// joinResponseEnvelope is sent exactly once per session, before any other
// server-pushed envelope (spec §8 "no envelope before
// joinResponse{success=true}").
type joinResponseEnvelope struct {
	Kind     EnvelopeKind `json:"kind"`
	V        int          `json:"v"`
	Success  bool         `json:"success"`
	PlayerID string       `json:"playerId,omitempty"`
	Encoding string       `json:"encoding,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// actionResponseEnvelope carries either a successful action result or a
// typed dispatch error (spec §7 "dispatch" taxonomy).
type actionResponseEnvelope struct {
	Kind      EnvelopeKind   `json:"kind"`
	V         int            `json:"v"`
	RequestID string         `json:"requestId"`
	Success   bool           `json:"success"`
	Result    any            `json:"result,omitempty"`
	Error     *envelopeError `json:"error,omitempty"`
}

// eventEnvelope carries a server-pushed fire-and-forget event.
type eventEnvelope struct {
	Kind    EnvelopeKind `json:"kind"`
	V       int          `json:"v"`
	Type    string       `json:"type"`
	Payload any          `json:"payload,omitempty"`
}

// errorEnvelope carries a protocol-level error (spec §7 "protocol").
type errorEnvelope struct {
	Kind  EnvelopeKind  `json:"kind"`
	V     int           `json:"v"`
	Error envelopeError `json:"error"`
}

// envelopeError is the stable, client-facing error shape (spec §7
// "User-visible behavior" — "a stable code, a human message, and ...
// a retryable flag").
type envelopeError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

package transport

import (
	"encoding/json"
	"fmt"

	"landkeeper/pkg/syncengine"

	"github.com/vmihailenco/msgpack/v5"
)

// wireEnvelope is the outer frame every server-pushed message is wrapped
// in, regardless of encoding: kind names the envelope, v is the protocol
// version, and body carries the kind-specific payload, pre-encoded by
// syncengine's codec for firstSync/diff or marshaled fresh for
// joinResponse/actionResponse/event/error.
type wireEnvelope struct {
	Kind string          `json:"kind" msgpack:"kind"`
	V    int             `json:"v" msgpack:"v"`
	Body json.RawMessage `json:"body" msgpack:"body"`
}

func marshalEnvelope(kind string, body []byte, enc syncengine.Encoding) ([]byte, error) {
	switch enc {
	case syncengine.EncodingMessagePack:
		return msgpack.Marshal(struct {
			Kind string `msgpack:"kind"`
			V    int    `msgpack:"v"`
			Body []byte `msgpack:"body"`
		}{Kind: kind, V: EnvelopeVersion, Body: body})
	default:
		return json.Marshal(wireEnvelope{Kind: kind, V: EnvelopeVersion, Body: body})
	}
}

// encodeSnapshotFrame wraps an already-codec-encoded snapshot body as a
// "firstSync" frame.
func encodeSnapshotFrame(body []byte, enc syncengine.Encoding) ([]byte, error) {
	return marshalEnvelope("firstSync", body, enc)
}

// encodeDiffFrame wraps an already-codec-encoded diff body as a "diff"
// frame.
func encodeDiffFrame(body []byte, enc syncengine.Encoding) ([]byte, error) {
	return marshalEnvelope("diff", body, enc)
}

// encodeEnvelope marshals a struct-shaped envelope (joinResponse,
// actionResponse, event, error — none of which go through syncengine's
// codec) per the session's negotiated encoding.
func encodeEnvelope(v any, enc syncengine.Encoding) ([]byte, error) {
	switch enc {
	case syncengine.EncodingMessagePack:
		return msgpack.Marshal(v)
	case syncengine.EncodingJSON, syncengine.EncodingOpcode:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("transport: unknown encoding %q", enc)
	}
}

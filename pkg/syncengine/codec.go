package syncengine

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding names one of the three wire encodings a session may be
// negotiated onto during join (spec §4.1 "Encodings").
type Encoding string

const (
	EncodingJSON        Encoding = "json"
	EncodingOpcode       Encoding = "opcode"
	EncodingMessagePack Encoding = "messagepack"
)

var patchOpcodes = map[PatchOp]int{
	OpAdd:     0,
	OpReplace: 1,
	OpRemove:  2,
}

var opcodePatchOps = map[int]PatchOp{
	0: OpAdd,
	1: OpReplace,
	2: OpRemove,
}

// Codec encodes snapshots and state updates for the wire. Implementations
// must round-trip: bytes produced by EncodeUpdate are meaningful only to a
// client that has negotiated the same Encoding (spec §4.1 "the client must
// honor it for subsequent frames").
type Codec interface {
	Encoding() Encoding
	EncodeSnapshot(snapshot StateSnapshot) ([]byte, error)
	EncodeUpdate(update *StateUpdate) ([]byte, error)
}

// NewCodec returns the Codec for the given encoding, or an error if the
// encoding is not recognized.
func NewCodec(enc Encoding) (Codec, error) {
	switch enc {
	case EncodingJSON:
		return jsonCodec{}, nil
	case EncodingOpcode:
		return opcodeCodec{}, nil
	case EncodingMessagePack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("syncengine: unknown encoding %q", enc)
	}
}

type wireUpdate struct {
	Kind    string      `json:"kind" msgpack:"kind"`
	Patches []wirePatch `json:"patches,omitempty" msgpack:"patches,omitempty"`
}

type wirePatch struct {
	Op          string   `json:"op" msgpack:"op"`
	Path        string   `json:"path,omitempty" msgpack:"path,omitempty"`
	PathHash    uint32   `json:"pathHash,omitempty" msgpack:"pathHash,omitempty"`
	DynamicKeys []string `json:"dynamicKeys,omitempty" msgpack:"dynamicKeys,omitempty"`
	Value       any      `json:"value,omitempty" msgpack:"value,omitempty"`
}

func toWireUpdate(u *StateUpdate) wireUpdate {
	w := wireUpdate{Kind: u.Kind.String()}
	for _, p := range u.Patches {
		w.Patches = append(w.Patches, wirePatch{
			Op:          string(p.Op),
			Path:        p.Path,
			PathHash:    p.PathHash,
			DynamicKeys: p.DynamicKeys,
			Value:       p.Value,
		})
	}
	return w
}

// jsonCodec encodes the plain JSON-object form: field names and
// JSON-Pointer path strings are sent verbatim.
type jsonCodec struct{}

func (jsonCodec) Encoding() Encoding { return EncodingJSON }

func (jsonCodec) EncodeSnapshot(snapshot StateSnapshot) ([]byte, error) {
	return json.Marshal(snapshot)
}

func (jsonCodec) EncodeUpdate(update *StateUpdate) ([]byte, error) {
	return json.Marshal(toWireUpdate(update))
}

// opcodeCodec encodes diffs as positional arrays keyed by an integer
// opcode, trading human-readability for smaller payloads (spec §4.1
// "opcode JSON array"). Paths are carried only as pathHash + dynamicKeys,
// never as strings.
type opcodeCodec struct{}

func (opcodeCodec) Encoding() Encoding { return EncodingOpcode }

func (opcodeCodec) EncodeSnapshot(snapshot StateSnapshot) ([]byte, error) {
	// First sync always ships a full object; there is nothing to compress
	// positionally since there is no previous projection to diff against.
	return json.Marshal(snapshot)
}

func (opcodeCodec) EncodeUpdate(update *StateUpdate) ([]byte, error) {
	rows := make([][]any, 0, len(update.Patches))
	for _, p := range update.Patches {
		opcode, ok := patchOpcodes[p.Op]
		if !ok {
			return nil, fmt.Errorf("syncengine: unknown patch op %q", p.Op)
		}
		rows = append(rows, []any{opcode, p.PathHash, p.DynamicKeys, p.Value})
	}
	return json.Marshal([]any{int(update.Kind), rows})
}

// DecodeOpcodeUpdate reverses EncodeUpdate for test/round-trip purposes.
func DecodeOpcodeUpdate(data []byte) (*StateUpdate, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("syncengine: malformed opcode update")
	}
	var kind int
	if err := json.Unmarshal(raw[0], &kind); err != nil {
		return nil, err
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw[1], &rows); err != nil {
		return nil, err
	}
	update := &StateUpdate{Kind: UpdateKind(kind)}
	for _, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("syncengine: malformed opcode patch row")
		}
		var opcode int
		if err := json.Unmarshal(row[0], &opcode); err != nil {
			return nil, err
		}
		op, ok := opcodePatchOps[opcode]
		if !ok {
			return nil, fmt.Errorf("syncengine: unknown opcode %d", opcode)
		}
		var pathHash uint32
		if err := json.Unmarshal(row[1], &pathHash); err != nil {
			return nil, err
		}
		var dynamicKeys []string
		if err := json.Unmarshal(row[2], &dynamicKeys); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(row[3], &value); err != nil {
			return nil, err
		}
		update.Patches = append(update.Patches, Patch{
			Op: op, PathHash: pathHash, DynamicKeys: dynamicKeys, Value: value,
		})
	}
	return update, nil
}

// msgpackCodec encodes the same shapes as jsonCodec but with MessagePack,
// the default negotiated encoding (spec §4.3 "default MessagePack when
// available").
type msgpackCodec struct{}

func (msgpackCodec) Encoding() Encoding { return EncodingMessagePack }

func (msgpackCodec) EncodeSnapshot(snapshot StateSnapshot) ([]byte, error) {
	return msgpack.Marshal(snapshot)
}

func (msgpackCodec) EncodeUpdate(update *StateUpdate) ([]byte, error) {
	return msgpack.Marshal(toWireUpdate(update))
}

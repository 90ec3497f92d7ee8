package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTripsSnapshot(t *testing.T) {
	codec, err := NewCodec(EncodingJSON)
	require.NoError(t, err)

	data, err := codec.EncodeSnapshot(StateSnapshot{"tick": 3})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tick":3`)
}

func TestOpcodeCodecEncodesAndDecodesUpdate(t *testing.T) {
	codec, err := NewCodec(EncodingOpcode)
	require.NoError(t, err)

	update := &StateUpdate{
		Kind: Diff,
		Patches: []Patch{
			{Op: OpReplace, PathHash: HashPath("tick"), Value: 4},
			{Op: OpRemove, PathHash: HashPath("players.*.hp"), DynamicKeys: []string{"p1"}},
		},
	}

	data, err := codec.EncodeUpdate(update)
	require.NoError(t, err)

	decoded, err := DecodeOpcodeUpdate(data)
	require.NoError(t, err)
	require.Len(t, decoded.Patches, 2)
	assert.Equal(t, OpReplace, decoded.Patches[0].Op)
	assert.Equal(t, float64(4), decoded.Patches[0].Value)
	assert.Equal(t, OpRemove, decoded.Patches[1].Op)
	assert.Equal(t, []string{"p1"}, decoded.Patches[1].DynamicKeys)
}

func TestMsgpackCodecEncodesWithoutError(t *testing.T) {
	codec, err := NewCodec(EncodingMessagePack)
	require.NoError(t, err)

	data, err := codec.EncodeUpdate(&StateUpdate{Kind: FirstSync, Patches: []Patch{
		{Op: OpAdd, Path: "/tick", Value: 1},
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestNewCodecRejectsUnknownEncoding(t *testing.T) {
	_, err := NewCodec(Encoding("bogus"))
	assert.Error(t, err)
}

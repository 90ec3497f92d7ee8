package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeValidator(t *testing.T) {
	v := NewEnvelopeValidator(1024)
	require.NotNil(t, v)
	assert.Equal(t, int64(1024), v.maxPayloadSize)

	// Non-positive falls back to the default.
	v = NewEnvelopeValidator(0)
	assert.Equal(t, int64(DefaultMaxPayloadSize), v.maxPayloadSize)
}

func TestValidateJoin(t *testing.T) {
	v := NewEnvelopeValidator(1024)

	tests := []struct {
		name          string
		landType      string
		instanceID    string
		clientID      string
		deviceID      string
		metadata      map[string]interface{}
		expectError   bool
		errorContains string
	}{
		{name: "valid minimal join", landType: "arena", clientID: "p1"},
		{name: "valid with instance and device", landType: "arena", instanceID: "match-42", clientID: "p1", deviceID: "device-abc"},
		{name: "empty landType", landType: "", clientID: "p1", expectError: true, errorContains: "landType"},
		{name: "landType with invalid characters", landType: "arena!", clientID: "p1", expectError: true, errorContains: "landType"},
		{name: "empty clientID", landType: "arena", clientID: "", expectError: true, errorContains: "clientId"},
		{name: "clientID too long", landType: "arena", clientID: strings.Repeat("a", 200), expectError: true, errorContains: "clientId"},
		{name: "instanceId with invalid characters", landType: "arena", instanceID: "bad id", clientID: "p1", expectError: true, errorContains: "instanceId"},
		{name: "too much metadata", landType: "arena", clientID: "p1", metadata: bigMetadata(), expectError: true, errorContains: "metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJoin(tt.landType, tt.instanceID, tt.clientID, tt.deviceID, tt.metadata)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func bigMetadata() map[string]interface{} {
	m := make(map[string]interface{}, MaxMetadataKeys+1)
	for i := 0; i < MaxMetadataKeys+1; i++ {
		m[strings.Repeat("k", 1+i/26)+string(rune('a'+i%26))] = i
	}
	return m
}

func TestValidateAction(t *testing.T) {
	v := NewEnvelopeValidator(16)

	tests := []struct {
		name           string
		typeIdentifier string
		payload        []byte
		expectError    bool
		errorContains  string
	}{
		{name: "valid action", typeIdentifier: "move", payload: []byte(`{"x":1}`)},
		{name: "empty type", typeIdentifier: "", payload: nil, expectError: true, errorContains: "type"},
		{name: "oversized payload", typeIdentifier: "move", payload: []byte(strings.Repeat("x", 32)), expectError: true, errorContains: "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAction(tt.typeIdentifier, tt.payload)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEvent(t *testing.T) {
	v := NewEnvelopeValidator(1024)
	assert.NoError(t, v.ValidateEvent("chat", []byte(`{"text":"hi"}`)))
	assert.Error(t, v.ValidateEvent("", nil))
}

func TestValidateQueueKey(t *testing.T) {
	tests := []struct {
		name        string
		queueKey    string
		expectError bool
	}{
		{name: "bare land type", queueKey: "arena"},
		{name: "with numeric qualifier", queueKey: "arena:4v4"},
		{name: "empty land type", queueKey: "", expectError: true},
		{name: "qualifier with invalid characters", queueKey: "arena:4-v-4", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueueKey(tt.queueKey)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

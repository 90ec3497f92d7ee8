package matchmaking

import "testing"

func TestParseQueueKey(t *testing.T) {
	tests := []struct {
		name          string
		queueKey      string
		wantLandType  string
		wantGroupSize int
	}{
		{"plain land type", "arena", "arena", 1},
		{"nvn duel qualifier", "duel:2v2", "duel", 2},
		{"nvn four-a-side", "duel:4v4", "duel", 4},
		{"mismatched nvn falls back to solo", "duel:2v3", "duel", 1},
		{"plain numeric qualifier", "arena:3", "arena", 3},
		{"zero qualifier falls back to solo", "arena:0", "arena", 1},
		{"empty qualifier falls back to solo", "arena:", "arena", 1},
		{"non-numeric qualifier falls back to solo", "arena:ranked", "arena", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			landType, groupSize := ParseQueueKey(tt.queueKey)
			if landType != tt.wantLandType {
				t.Errorf("landType = %q, want %q", landType, tt.wantLandType)
			}
			if groupSize != tt.wantGroupSize {
				t.Errorf("groupSize = %d, want %d", groupSize, tt.wantGroupSize)
			}
		})
	}
}

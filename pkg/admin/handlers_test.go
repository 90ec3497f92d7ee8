package admin

import "testing"

func TestSplitLandID(t *testing.T) {
	tests := []struct {
		id             string
		wantLandType   string
		wantInstanceID string
		wantOK         bool
	}{
		{"duel:abc123", "duel", "abc123", true},
		{"arena:room-7", "arena", "room-7", true},
		{"noseparator", "", "", false},
		{":missing-type", "", "", false},
		{"missing-instance:", "", "", false},
	}

	for _, tt := range tests {
		landType, instanceID, ok := splitLandID(tt.id)
		if landType != tt.wantLandType || instanceID != tt.wantInstanceID || ok != tt.wantOK {
			t.Errorf("splitLandID(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.id, landType, instanceID, ok, tt.wantLandType, tt.wantInstanceID, tt.wantOK)
		}
	}
}

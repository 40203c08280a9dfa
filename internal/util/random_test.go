package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"small length", 8, 8},
		{"large length", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomHex(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomHex() length = %v, want %v", len(got), tt.want)
			}
			if tt.want > 0 && !isValidHex(got) {
				t.Errorf("GenerateRandomHex() = %v is not valid hex", got)
			}
		})
	}
}

func TestGenerateRandomUpperAlphaNumeric(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"offer code suffix", 4, 4},
		{"large length", 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomUpperAlphaNumeric(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomUpperAlphaNumeric() length = %v, want %v", len(got), tt.want)
			}
			for _, c := range got {
				if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')) {
					t.Errorf("GenerateRandomUpperAlphaNumeric() = %v contains %q", got, c)
				}
			}
		})
	}
}

func TestGenerateSessionID(t *testing.T) {
	got := GenerateSessionID()

	if !strings.HasPrefix(got, "sess_") {
		t.Errorf("GenerateSessionID() = %v, want prefix sess_", got)
	}
	if len(got) != 17 { // "sess_" + 12 hex chars
		t.Errorf("GenerateSessionID() length = %v, want 17", len(got))
	}
	if !isValidHex(got[5:]) {
		t.Errorf("GenerateSessionID() hex part = %v is not valid hex", got[5:])
	}
}

func TestSessionIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		id := GenerateSessionID()
		if seen[id] {
			t.Errorf("GenerateSessionID() generated duplicate: %v", id)
		}
		seen[id] = true
	}
}

// Helper function to validate hex strings
func isValidHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

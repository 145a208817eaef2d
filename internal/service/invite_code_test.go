package service

import (
	"strings"
	"testing"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatalf("GenerateInviteCode() error = %v", err)
		}
		if !ValidInviteCode(code) {
			t.Fatalf("GenerateInviteCode() = %q, not a valid code", code)
		}
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("GenerateInviteCode() = %q, contains an ambiguous character", code)
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Errorf("expected mostly distinct codes, got %d of 200", len(seen))
	}
}

func TestValidInviteCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC234", true},
		{"ZZZZZZ", true},
		{"abc234", false},
		{"ABC23", false},
		{"ABC2345", false},
		{"ABC0DE", false},
		{"ABCIDE", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidInviteCode(tt.code); got != tt.want {
			t.Errorf("ValidInviteCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	if got := NormalizeInviteCode("  abc234\n"); got != "ABC234" {
		t.Errorf("NormalizeInviteCode() = %q, want %q", got, "ABC234")
	}
}

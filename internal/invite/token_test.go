package invite_test

import (
	"strings"
	"testing"

	"github.com/erickerk/elitetrack/internal/invite"
)

func TestGenerateToken_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		token, err := invite.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if !invite.WellFormed(token) {
			t.Fatalf("GenerateToken() = %q, not well formed", token)
		}
		groups := strings.Split(token, "-")
		if len(groups) != 4 {
			t.Fatalf("GenerateToken() = %q, want 4 groups", token)
		}
		if strings.ContainsAny(token, "0O1Ilio") {
			t.Fatalf("GenerateToken() = %q contains an ambiguous character", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestTokenAlphabet(t *testing.T) {
	if len(invite.TokenAlphabet) != 55 {
		t.Errorf("len(TokenAlphabet) = %d, want 55", len(invite.TokenAlphabet))
	}
}

func TestWellFormed(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"Hk7m-Q2xP-9aZr-WcD4", true},
		{"Hk7m-Q2xP-9aZr", false},
		{"Hk7m-Q2xP-9aZr-WcD0", false},
		{"Hk7mQ2xP9aZrWcD4", false},
		{"", false},
		{"' OR 1=1 --", false},
	}
	for _, tt := range tests {
		if got := invite.WellFormed(tt.token); got != tt.want {
			t.Errorf("WellFormed(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

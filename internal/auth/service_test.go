package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	service := NewPasswordService(bcrypt.MinCost)

	hash, err := service.HashPassword("SecurePass123!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v, want nil", err)
	}

	if hash == "" || hash == "SecurePass123!" {
		t.Fatalf("HashPassword() returned %q, want a bcrypt hash", hash)
	}

	if err := service.VerifyPassword(hash, "SecurePass123!"); err != nil {
		t.Errorf("VerifyPassword() error = %v, want nil for correct password", err)
	}

	if err := service.VerifyPassword(hash, "WrongPass123!"); err == nil {
		t.Error("VerifyPassword() error = nil, want error for wrong password")
	}
}

func TestVerifyPassword_EmptyHash(t *testing.T) {
	service := NewPasswordService(bcrypt.MinCost)

	if err := service.VerifyPassword("", ""); err == nil {
		t.Error("VerifyPassword() with empty hash error = nil, want mismatch")
	}
}

func TestNewPasswordService_InvalidCostFallsBack(t *testing.T) {
	service := NewPasswordService(100)
	if service.cost != DefaultBcryptCost {
		t.Errorf("cost = %d, want %d", service.cost, DefaultBcryptCost)
	}
}

func TestGenerateTempPassword(t *testing.T) {
	service := NewPasswordService(bcrypt.MinCost)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pw, err := service.GenerateTempPassword(10)
		if err != nil {
			t.Fatalf("GenerateTempPassword() error = %v", err)
		}
		if len(pw) != 10 {
			t.Fatalf("len = %d, want 10", len(pw))
		}
		if strings.ContainsAny(pw, "0O1Il") {
			t.Fatalf("temp password %q contains an ambiguous character", pw)
		}
		if seen[pw] {
			t.Fatalf("duplicate temp password %q", pw)
		}
		seen[pw] = true
	}

	if _, err := service.GenerateTempPassword(4); err == nil {
		t.Error("GenerateTempPassword(4) error = nil, want error")
	}
}

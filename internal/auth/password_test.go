package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("abc12345", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword("abc12345", hash); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckPassword("abc12346", hash); err != errInvalidPassword {
		t.Fatalf("expected invalid password, got %v", err)
	}
	if err := CheckPassword(strings.Repeat("a1", 40), hash); err != errInvalidPassword {
		t.Fatalf("expected overlong password to be rejected as invalid, got %v", err)
	}
	if err := CheckPassword("abc12345", "not-a-hash"); err == nil || err == errInvalidPassword {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		want     int
	}{
		{"", 1},
		{"abc12345", 0},
		{"abcdefgh", 1},
		{"12345678", 1},
		{"ab1", 1},
		{"!!", 3},
		{strings.Repeat("a1", 36), 0},
		{strings.Repeat("a1", 40), 1},
	}
	for _, tc := range cases {
		if got := ValidatePasswordStrength(tc.password, 8); len(got) != tc.want {
			t.Errorf("ValidatePasswordStrength(%q) = %v, want %d errors", tc.password, got, tc.want)
		}
	}
}

package core

import (
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	valid := map[string]string{
		"exports/2025/snapshot.json": "exports/2025/snapshot.json",
		"a//b/./c":                   "a/b/c",
		"file..name":                 "file..name",
	}
	for in, want := range valid {
		got, err := ValidateKey(in)
		if err != nil || got != want {
			t.Errorf("ValidateKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "  ", "/abs", "../up", "a/../../b", `win\path`} {
		if _, err := ValidateKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) expected ErrInvalidKey, got %v", in, err)
		}
	}
}

func TestCheckMethod(t *testing.T) {
	for _, m := range []string{"", "GET", "get"} {
		if err := CheckMethod(SignedURLOptions{Method: m}); err != nil {
			t.Errorf("CheckMethod(%q) = %v", m, err)
		}
	}
	if err := CheckMethod(SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected unsupported for PUT, got %v", err)
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	in := map[string]string{"a": "1"}
	out := CloneMetadata(in)
	out["a"] = "2"
	if in["a"] != "1" {
		t.Fatalf("clone aliases input")
	}
}

package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsAndRecoverability(t *testing.T) {
	cases := []struct {
		err         error
		kind        ErrorKind
		recoverable bool
	}{
		{&ValidationFailedError{Entity: EntityFacility, ID: "f", Errors: []ValidationError{RequiredFieldMissing("name")}}, ErrorKindValidation, true},
		{&ConfigurationValidationError{ConfigurationType: ConfigurationTypeBuilding}, ErrorKindValidation, true},
		{&NotFoundError{Entity: EntityFacility, ID: "f"}, ErrorKindNotFound, false},
		{&AlreadyExistsError{Entity: EntityBuilding, ID: "b"}, ErrorKindAlreadyExists, false},
		{&AccessDeniedError{Reason: "locked"}, ErrorKindAccessDenied, true},
		{&UnavailableError{Operation: "list", Err: errors.New("timeout")}, ErrorKindUnavailable, true},
		{errors.New("plain"), ErrorKindUnknown, false},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if got := KindOf(wrapped); got != tc.kind {
			t.Fatalf("%v: kind %s want %s", tc.err, got, tc.kind)
		}
		if got := IsRecoverable(wrapped); got != tc.recoverable {
			t.Fatalf("%v: recoverable %v want %v", tc.err, got, tc.recoverable)
		}
		if tc.err.Error() == "" {
			t.Fatalf("empty description for %T", tc.err)
		}
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil error has no kind")
	}
}

func TestValidationFailedErrorListsEveryFailure(t *testing.T) {
	err := &ValidationFailedError{Entity: EntityFacility, ID: "f", Errors: []ValidationError{
		RequiredFieldMissing("name"),
		InvalidFormat("contactInfo.email", EmailPattern),
	}}
	want := "facility f failed validation: name is required; contactInfo.email has an invalid format (expected " + EmailPattern + ")"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}

func TestUnavailableUnwraps(t *testing.T) {
	root := errors.New("dial tcp")
	err := &UnavailableError{Operation: "get", Err: root}
	if !errors.Is(err, root) {
		t.Fatalf("expected unwrap to reach root cause")
	}
}

package domain

import "testing"

// mustNoError simplifies tests that expect helper methods to succeed.
func mustNoError(t *testing.T, label string, err error) {
	t.Helper()
	if err != nil {
		if label == "" {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Fatalf("%s: %v", label, err)
	}
}

// hasKind reports whether errs contains a failure of kind for field. An empty field matches
// any field.
func hasKind(errs []ValidationError, kind ValidationErrorKind, field string) bool {
	for _, err := range errs {
		if err.Kind == kind && (field == "" || err.Field == field) {
			return true
		}
	}
	return false
}

func countKind(errs []ValidationError, kind ValidationErrorKind) int {
	n := 0
	for _, err := range errs {
		if err.Kind == kind {
			n++
		}
	}
	return n
}

func validFacilityFields() FacilityFields {
	return FacilityFields{
		Name: "Test Facility",
		Type: FacilityResearch,
		ContactInfo: ContactInfo{
			PrimaryContact: "Dr. Rivera",
			Email:          "test@facility.com",
			Phone:          StringPtr("+1 555 010 2000"),
		},
		Address: Address{
			Street:     "1 Lab Way",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
		OperatingHours: StandardOperatingHours(),
	}
}

package domain

// Address is a postal address. Every component is required.
type Address struct {
	Street     string `json:"street" yaml:"street" firestore:"street"`
	City       string `json:"city" yaml:"city" firestore:"city"`
	State      string `json:"state" yaml:"state" firestore:"state"`
	PostalCode string `json:"postalCode" yaml:"postalCode" firestore:"postalCode"`
	Country    string `json:"country" yaml:"country" firestore:"country"`
}

// Validate implements Validator.
func (a Address) Validate() []ValidationError {
	return Rules(
		Required(a.Street, "street"),
		Required(a.City, "city"),
		Required(a.State, "state"),
		Required(a.PostalCode, "postalCode"),
		Required(a.Country, "country"),
	).Validate()
}

// ContactInfo holds how a facility is reached.
type ContactInfo struct {
	PrimaryContact string  `json:"primaryContact" yaml:"primaryContact" firestore:"primaryContact"`
	Email          string  `json:"email" yaml:"email" firestore:"email"`
	Phone          *string `json:"phone,omitempty" yaml:"phone,omitempty" firestore:"phone,omitempty"`
	EmergencyPhone *string `json:"emergencyPhone,omitempty" yaml:"emergencyPhone,omitempty" firestore:"emergencyPhone,omitempty"`
	Website        *string `json:"website,omitempty" yaml:"website,omitempty" firestore:"website,omitempty"`
}

// Validate requires an email and checks the format of every present field. A blank email
// reports both the missing value and the format failure.
func (c ContactInfo) Validate() []ValidationError {
	email := c.Email
	return Rules(
		Required(c.Email, "email"),
		Pattern(&email, EmailPattern, "email"),
		Pattern(c.Phone, PhonePattern, "phone"),
		Pattern(c.EmergencyPhone, PhonePattern, "emergencyPhone"),
	).Validate()
}

// Clone returns a deep copy.
func (c ContactInfo) Clone() ContactInfo {
	cp := c
	cp.Phone = cloneString(c.Phone)
	cp.EmergencyPhone = cloneString(c.EmergencyPhone)
	cp.Website = cloneString(c.Website)
	return cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

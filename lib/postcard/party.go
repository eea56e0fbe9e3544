package postcard

import (
	"fmt"
	"strings"
)

// ValidationError reports the required fields a party of a postcard is missing.
type ValidationError struct {
	// Party is "sender" or "recipient".
	Party   string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"postcard: %s is missing required fields: %s",
		e.Party, strings.Join(e.Missing, ", "),
	)
}

type field struct {
	name  string
	value string
}

// validateFields only checks presence, a postal code like "0000" is valid.
func validateFields(party string, fields []field) error {
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Party: party, Missing: missing}
	}
	return nil
}

type Sender struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	Place      string `json:"place"`
	Company    string `json:"company"`
}

// Validate returns a *ValidationError listing every empty required field.
func (s Sender) Validate() error {
	return validateFields("sender", []field{
		{"given_name", s.GivenName},
		{"family_name", s.FamilyName},
		{"street", s.Street},
		{"postal_code", s.PostalCode},
		{"place", s.Place},
	})
}

func (s Sender) IsValid() bool {
	return s.Validate() == nil
}

// FullName is the given name followed by the family name.
func (s Sender) FullName() string {
	return strings.TrimSpace(s.GivenName + " " + s.FamilyName)
}

type Recipient struct {
	Salutation      string `json:"salutation"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	Company         string `json:"company"`
	CompanyAddition string `json:"company_addition"`
	Street          string `json:"street"`
	PostalCode      string `json:"postal_code"`
	Place           string `json:"place"`
}

// Validate returns a *ValidationError listing every empty required field.
func (r Recipient) Validate() error {
	return validateFields("recipient", []field{
		{"given_name", r.GivenName},
		{"family_name", r.FamilyName},
		{"street", r.Street},
		{"postal_code", r.PostalCode},
		{"place", r.Place},
	})
}

func (r Recipient) IsValid() bool {
	return r.Validate() == nil
}

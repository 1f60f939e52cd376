package domain

import (
	"fmt"
	"strings"
)

type Contact struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type Shipping struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Fields are the contact and shipping details collected before payment.
type Fields struct {
	Contact  Contact  `json:"contact"`
	Shipping Shipping `json:"shipping"`
}

// FieldErrors lists required fields that are still blank.
type FieldErrors struct {
	Missing []string
}

func (e *FieldErrors) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Validate gates the payment step. It is a convenience check only; order
// creation validates again on the server.
func (f Fields) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"email", f.Contact.Email},
		{"full_name", f.Contact.FullName},
		{"line1", f.Shipping.Line1},
		{"city", f.Shipping.City},
		{"postal_code", f.Shipping.PostalCode},
		{"country", f.Shipping.Country},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return &FieldErrors{Missing: missing}
	}
	return nil
}

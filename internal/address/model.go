package address

import (
	"strings"
	"time"

	"vox-be/internal/apperr"

	"github.com/google/uuid"
)

// Address is a delivery address. Orders keep a copy of it, so later edits never
// touch historical orders.
type Address struct {
	ID          uuid.UUID `json:"id,omitempty"`
	PhoneNumber string    `json:"phoneNumber"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	GSTIN       string    `json:"gstin,omitempty"`
	Pincode     string    `json:"pincode"`
	Area        string    `json:"area"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type CreateAddressInput struct {
	PhoneNumber string `json:"phoneNumber"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	GSTIN       string `json:"gstin"`
	Pincode     string `json:"pincode"`
	Area        string `json:"area"`
	City        string `json:"city"`
	State       string `json:"state"`
}

func (in CreateAddressInput) ToAddress() *Address {
	return &Address{
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		FullName:    strings.TrimSpace(in.FullName),
		Email:       strings.TrimSpace(in.Email),
		GSTIN:       strings.TrimSpace(in.GSTIN),
		Pincode:     strings.TrimSpace(in.Pincode),
		Area:        strings.TrimSpace(in.Area),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
	}
}

// Validate reports a validation error naming every missing or malformed field.
func (a *Address) Validate() error {
	if a == nil {
		return apperr.Validation("address is required")
	}

	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"phoneNumber", a.PhoneNumber},
		{"email", a.Email},
		{"pincode", a.Pincode},
		{"area", a.Area},
		{"city", a.City},
		{"state", a.State},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validationf("address is missing required fields: %s", strings.Join(missing, ", "))
	}

	if !isPincode(a.Pincode) {
		return apperr.Validation("address pincode must be 6 digits")
	}
	if !strings.Contains(a.Email, "@") {
		return apperr.Validation("address email is invalid")
	}

	return nil
}

func isPincode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

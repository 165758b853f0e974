// Package doctor owns the doctor profile the verification flow updates.
package doctor

import (
	"net/mail"
	"strings"
	"time"

	"medverify/internal/verification"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
)

// Profile is a registered doctor. VerificationStatus only becomes verified
// through a verified registry outcome.
type Profile struct {
	ID                 id.DoctorID
	FullName           string
	Email              string
	PMDCNumber         string
	VerificationStatus verification.ProfileStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsVerified reports whether the profile carries a registry-confirmed license.
func (p *Profile) IsVerified() bool {
	return p.VerificationStatus == verification.ProfileVerified
}

// Registration is the input for a new profile.
type Registration struct {
	FullName   string
	Email      string
	PMDCNumber string
}

func (r *Registration) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.PMDCNumber = strings.TrimSpace(r.PMDCNumber)
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.PMDCNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "pmdcNumber is required")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

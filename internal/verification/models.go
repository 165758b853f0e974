package verification

import (
	"strings"
	"time"

	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
)

// Claim is the identity a doctor asserts for one attempt. It names the
// pending ledger entry the attempt will decide.
type Claim struct {
	LogEntryID    id.LogEntryID
	LicenseNumber string
	FullName      string
	// FatherName is optional corroboration; empty skips the father's-name
	// rule.
	FatherName string
}

// Validate trims the claim and checks its shape.
func (c *Claim) Validate() error {
	c.LicenseNumber = strings.TrimSpace(c.LicenseNumber)
	c.FullName = strings.TrimSpace(c.FullName)
	c.FatherName = strings.TrimSpace(c.FatherName)
	if c.LogEntryID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "verification log id is required")
	}
	if c.LicenseNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "pmdcNumber is required")
	}
	if c.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// CandidateRecord is the registry's record for the queried license. Text is
// verbatim as stored by the registry.
type CandidateRecord struct {
	RegistrationNumber string
	FullName           string
	FatherName         string
	StatusText         string
	// LicenseValidUntil is nil when the registry showed no validity date.
	LicenseValidUntil *time.Time
}

// ProfileStatus is the doctor profile vocabulary.
type ProfileStatus string

const (
	ProfilePending  ProfileStatus = "pending"
	ProfileVerified ProfileStatus = "verified"
	ProfileRevoked  ProfileStatus = "revoked"
	ProfileRejected ProfileStatus = "rejected"
)

package verification

import (
	"strings"
	"time"
)

// Decide evaluates a claim against the registry's candidate record at now.
// This is pure domain logic - no I/O, no side effects.
//
// Rule priority (first match wins):
//  1. No candidate - not found
//  2. Validity date before today - expired, regardless of names
//  3. Full name differs (case-insensitive) - name mismatch
//  4. Father's name claimed and differs - father's name mismatch
//  5. Otherwise verified, carrying the registry's values
func Decide(claim Claim, candidate *CandidateRecord, now time.Time) Outcome {
	// Rule 1: absence of a row is the registry's "no"
	if candidate == nil {
		return NotFound{}
	}

	// Rule 2: expiry is a property of the license, checked before identity
	if candidate.LicenseValidUntil != nil && isBeforeDay(*candidate.LicenseValidUntil, now) {
		return Expired{ValidUntil: *candidate.LicenseValidUntil}
	}

	// Rule 3: full name is the primary identity key
	if normalizeName(claim.FullName) != normalizeName(candidate.FullName) {
		return NameMismatch{Expected: claim.FullName, Actual: candidate.FullName}
	}

	// Rule 4: father's name only when the claim supplies one
	if strings.TrimSpace(claim.FatherName) != "" &&
		normalizeName(claim.FatherName) != normalizeName(candidate.FatherName) {
		return FatherNameMismatch{Expected: claim.FatherName, Actual: candidate.FatherName}
	}

	return Verified{
		RegistrationNumber: candidate.RegistrationNumber,
		FullName:           candidate.FullName,
		FatherName:         candidate.FatherName,
	}
}

// normalizeName upper-cases, as the registry stores names upper-cased.
func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// isBeforeDay compares calendar days: validUntil's own date against now's
// date in now's location. A license valid until today is still valid.
func isBeforeDay(validUntil, now time.Time) bool {
	vy, vm, vd := validUntil.Date()
	ny, nm, nd := now.Date()
	valid := time.Date(vy, vm, vd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return valid.Before(today)
}

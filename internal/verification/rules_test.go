package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "medverify/pkg/domain"
)

var now = time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, time.UTC)
	return &t
}

func aliKhan(validUntil *time.Time) *CandidateRecord {
	return &CandidateRecord{
		RegistrationNumber: "PK-1001",
		FullName:           "ALI KHAN",
		FatherName:         "TARIQ KHAN",
		StatusText:         "Active",
		LicenseValidUntil:  validUntil,
	}
}

func claimFor(name, father string) Claim {
	return Claim{
		LogEntryID:    id.NewLogEntryID(),
		LicenseNumber: "PK-1001",
		FullName:      name,
		FatherName:    father,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		claim     Claim
		candidate *CandidateRecord
		want      Outcome
	}{
		{
			name:      "case-insensitive name without father's name",
			claim:     claimFor("Ali Khan", ""),
			candidate: aliKhan(day(365)),
			want:      Verified{RegistrationNumber: "PK-1001", FullName: "ALI KHAN", FatherName: "TARIQ KHAN"},
		},
		{
			name:      "expired yesterday",
			claim:     claimFor("Ali Khan", ""),
			candidate: aliKhan(day(-1)),
			want:      Expired{ValidUntil: *day(-1)},
		},
		{
			name:      "no candidate",
			claim:     claimFor("Ali Khan", "Tariq Khan"),
			candidate: nil,
			want:      NotFound{},
		},
		{
			name:      "truncated name",
			claim:     claimFor("Ali Kha", ""),
			candidate: aliKhan(day(365)),
			want:      NameMismatch{Expected: "Ali Kha", Actual: "ALI KHAN"},
		},
		{
			name:      "expiry wins over name mismatch",
			claim:     claimFor("Someone Else", "Wrong Father"),
			candidate: aliKhan(day(-30)),
			want:      Expired{ValidUntil: *day(-30)},
		},
		{
			name:      "valid until today is not expired",
			claim:     claimFor("ali khan", ""),
			candidate: aliKhan(day(0)),
			want:      Verified{RegistrationNumber: "PK-1001", FullName: "ALI KHAN", FatherName: "TARIQ KHAN"},
		},
		{
			name:      "no validity date skips expiry",
			claim:     claimFor("ALI KHAN", ""),
			candidate: aliKhan(nil),
			want:      Verified{RegistrationNumber: "PK-1001", FullName: "ALI KHAN", FatherName: "TARIQ KHAN"},
		},
		{
			name:      "wrong father's name with matching full name",
			claim:     claimFor("Ali Khan", "Imran Khan"),
			candidate: aliKhan(day(10)),
			want:      FatherNameMismatch{Expected: "Imran Khan", Actual: "TARIQ KHAN"},
		},
		{
			name:      "matching father's name in any case",
			claim:     claimFor("Ali Khan", "tariq khan"),
			candidate: aliKhan(day(10)),
			want:      Verified{RegistrationNumber: "PK-1001", FullName: "ALI KHAN", FatherName: "TARIQ KHAN"},
		},
		{
			name:      "full name checked before father's name",
			claim:     claimFor("Ali Raza", "Imran Khan"),
			candidate: aliKhan(day(10)),
			want:      NameMismatch{Expected: "Ali Raza", Actual: "ALI KHAN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.claim, tt.candidate, now))
		})
	}
}

func TestDecide_NotFoundRegardlessOfClaim(t *testing.T) {
	claims := []Claim{
		claimFor("", ""),
		claimFor("Ali Khan", "Tariq Khan"),
		claimFor("x", "y"),
	}
	for _, c := range claims {
		assert.Equal(t, NotFound{}, Decide(c, nil, now))
	}
}

func TestDecide_OmittedFatherNameNeverMismatches(t *testing.T) {
	fathers := []string{"", "SOMEONE", "TARIQ KHAN", "  "}
	for _, f := range fathers {
		candidate := aliKhan(day(1))
		candidate.FatherName = f
		got := Decide(claimFor("Ali Khan", ""), candidate, now)
		assert.IsType(t, Verified{}, got, "candidate father %q", f)
	}
}

func TestDecide_VerifiedCarriesRegistryValues(t *testing.T) {
	candidate := aliKhan(day(1))
	got := Decide(claimFor("  ali khan ", "tariq KHAN"), candidate, now)

	v, ok := got.(Verified)
	if assert.True(t, ok) {
		assert.Equal(t, candidate.FullName, v.FullName)
		assert.Equal(t, candidate.FatherName, v.FatherName)
		assert.Equal(t, candidate.RegistrationNumber, v.RegistrationNumber)
	}
}

func TestDecide_ExpiryUsesCalendarDay(t *testing.T) {
	lateEvening := time.Date(2026, 6, 15, 23, 59, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 6, 16, 0, 1, 0, 0, time.UTC)
	validUntil := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	candidate := aliKhan(&validUntil)

	assert.IsType(t, Verified{}, Decide(claimFor("Ali Khan", ""), candidate, lateEvening))
	assert.IsType(t, Expired{}, Decide(claimFor("Ali Khan", ""), candidate, earlyMorning))
}

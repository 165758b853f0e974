package domain

import (
	"github.com/google/uuid"

	dErrors "medverify/pkg/domain-errors"
)

// DoctorID identifies a doctor profile. It is owned by the surrounding account
// system; the verification engine only carries it.
type DoctorID uuid.UUID

// LogEntryID identifies a verification ledger entry.
type LogEntryID uuid.UUID

// NewDoctorID returns a fresh random DoctorID.
func NewDoctorID() DoctorID { return DoctorID(uuid.New()) }

// NewLogEntryID returns a fresh random LogEntryID.
func NewLogEntryID() LogEntryID { return LogEntryID(uuid.New()) }

func (id DoctorID) String() string   { return uuid.UUID(id).String() }
func (id LogEntryID) String() string { return uuid.UUID(id).String() }

func (id DoctorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id LogEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseDoctorID parses external input into a DoctorID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseDoctorID(s string) (DoctorID, error) {
	u, err := parseUUID(s, "doctor id")
	return DoctorID(u), err
}

// ParseLogEntryID parses external input into a LogEntryID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseLogEntryID(s string) (LogEntryID, error) {
	u, err := parseUUID(s, "verification log id")
	return LogEntryID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

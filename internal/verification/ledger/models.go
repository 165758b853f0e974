package ledger

import (
	"strings"
	"time"

	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
)

// Status is the ledger vocabulary. It is independent of the doctor profile
// vocabulary; only verification.ProfileStatusFor maps between them.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether the status is a final decision.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Entry is one verification attempt's audit record. Status moves from
// pending to a terminal status exactly once.
type Entry struct {
	ID         id.LogEntryID
	DoctorID   id.DoctorID
	PMDCNumber string
	FullName   string
	FatherName string
	Status     Status
	Reason     string
	ReasonCode string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewEntry is the registration-time input that opens a pending entry.
type NewEntry struct {
	DoctorID   id.DoctorID
	PMDCNumber string
	FullName   string
	FatherName string
}

func (n *NewEntry) Validate() error {
	n.PMDCNumber = strings.TrimSpace(n.PMDCNumber)
	n.FullName = strings.TrimSpace(n.FullName)
	n.FatherName = strings.TrimSpace(n.FatherName)
	if n.DoctorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "doctor id is required")
	}
	if n.PMDCNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "pmdc number is required")
	}
	if n.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	return nil
}

// Decision is the terminal write applied to a pending entry.
type Decision struct {
	Status     Status
	Reason     string
	ReasonCode string
}

func (d Decision) Validate() error {
	if !d.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "decision status must be approved or rejected")
	}
	if d.Reason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "decision reason is required")
	}
	return nil
}

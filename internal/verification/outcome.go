package verification

import (
	"time"

	"medverify/internal/verification/ledger"
)

// OutcomeKind names an outcome variant.
type OutcomeKind string

const (
	KindNotFound           OutcomeKind = "not_found"
	KindExpired            OutcomeKind = "expired"
	KindNameMismatch       OutcomeKind = "name_mismatch"
	KindFatherNameMismatch OutcomeKind = "father_name_mismatch"
	KindVerified           OutcomeKind = "verified"
	KindExtractionFailed   OutcomeKind = "extraction_failed"
)

// Outcome is the result of one verification attempt. The set of variants is
// closed.
type Outcome interface {
	Kind() OutcomeKind
	outcome()
}

// NotFound: the registry rendered no row for the license number.
type NotFound struct{}

// Expired: the license validity date is before today.
type Expired struct {
	ValidUntil time.Time
}

// NameMismatch: Expected is the claimed name, Actual the registry's.
type NameMismatch struct {
	Expected string
	Actual   string
}

// FatherNameMismatch: Expected is the claimed name, Actual the registry's.
type FatherNameMismatch struct {
	Expected string
	Actual   string
}

// Verified carries the registry's values, never the claimant's input.
type Verified struct {
	RegistrationNumber string
	FullName           string
	FatherName         string
}

// ExtractionFailed: the attempt could not determine an answer. Stage is a
// registry extraction stage or session failure kind.
type ExtractionFailed struct {
	Stage string
}

func (NotFound) Kind() OutcomeKind           { return KindNotFound }
func (Expired) Kind() OutcomeKind            { return KindExpired }
func (NameMismatch) Kind() OutcomeKind       { return KindNameMismatch }
func (FatherNameMismatch) Kind() OutcomeKind { return KindFatherNameMismatch }
func (Verified) Kind() OutcomeKind           { return KindVerified }
func (ExtractionFailed) Kind() OutcomeKind   { return KindExtractionFailed }

func (NotFound) outcome()           {}
func (Expired) outcome()            {}
func (NameMismatch) outcome()       {}
func (FatherNameMismatch) outcome() {}
func (Verified) outcome()           {}
func (ExtractionFailed) outcome()   {}

// User-facing reasons. Negative outcomes are relayed verbatim; structural
// failures get a generic message.
const (
	ReasonNotFound           = "PMDC number not found"
	ReasonExpired            = "PMDC License Expired"
	ReasonNameMismatch       = "Name does not match"
	ReasonFatherNameMismatch = "Father's name does not match"
	ReasonVerified           = "PMDC verification successful"
	ReasonRegistryFailure    = "verification failed, try again"
)

// Reason codes stored on ledger entries. Structural failures use the last
// three so monitoring can separate them from registry answers.
const (
	CodeNotFound            = "not_found"
	CodeExpired             = "expired"
	CodeNameMismatch        = "name_mismatch"
	CodeFatherNameMismatch  = "father_name_mismatch"
	CodeVerified            = "verified"
	CodeRegistryUnavailable = "registry_unavailable"
	CodeRegistryUnreadable  = "registry_unreadable"
	CodeAttemptCancelled    = "attempt_cancelled"
)

// Structural stages that mean the page rendered but could not be read.
var unreadableStages = map[string]bool{
	"result_row": true,
	"detail":     true,
}

// Reason returns the user-facing message for an outcome.
func Reason(o Outcome) string {
	switch o.(type) {
	case NotFound:
		return ReasonNotFound
	case Expired:
		return ReasonExpired
	case NameMismatch:
		return ReasonNameMismatch
	case FatherNameMismatch:
		return ReasonFatherNameMismatch
	case Verified:
		return ReasonVerified
	default:
		return ReasonRegistryFailure
	}
}

// ReasonCode returns the ledger reason code for an outcome.
func ReasonCode(o Outcome) string {
	switch v := o.(type) {
	case NotFound:
		return CodeNotFound
	case Expired:
		return CodeExpired
	case NameMismatch:
		return CodeNameMismatch
	case FatherNameMismatch:
		return CodeFatherNameMismatch
	case Verified:
		return CodeVerified
	case ExtractionFailed:
		switch {
		case v.Stage == "cancelled":
			return CodeAttemptCancelled
		case unreadableStages[v.Stage]:
			return CodeRegistryUnreadable
		default:
			return CodeRegistryUnavailable
		}
	default:
		return CodeRegistryUnavailable
	}
}

// DecisionFor maps an outcome to its ledger write. Only Verified approves.
// Structural failures are rejected with a reason naming the failure stage.
func DecisionFor(o Outcome) ledger.Decision {
	if _, ok := o.(Verified); ok {
		return ledger.Decision{Status: ledger.StatusApproved, Reason: ReasonVerified, ReasonCode: CodeVerified}
	}
	reason := Reason(o)
	if ef, ok := o.(ExtractionFailed); ok {
		reason = "Registry verification failed at " + ef.Stage
	}
	return ledger.Decision{Status: ledger.StatusRejected, Reason: reason, ReasonCode: ReasonCode(o)}
}

// ProfileStatusFor is the only bridge between outcome and profile vocabulary.
// It returns false when the profile should be left as it is.
func ProfileStatusFor(o Outcome) (ProfileStatus, bool) {
	switch o.(type) {
	case Verified:
		return ProfileVerified, true
	case NotFound, Expired, NameMismatch, FatherNameMismatch:
		return ProfileRejected, true
	default:
		return "", false
	}
}

package audit

import (
	"context"
	"time"

	id "medverify/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: every
	// credential verification decision lands here.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	DoctorID   id.DoctorID
	LogEntryID id.LogEntryID
	Action     string
	Decision   string
	Reason     string
	ReasonCode string
	// SubjectIDHash is a keyed hash of the license number under
	// verification. Raw license numbers are never emitted.
	SubjectIDHash string
	RequestID     string
	ClientAgent   string
}

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventVerificationRequested AuditEvent = "pmdc_verification_requested"
	EventVerificationDecided   AuditEvent = "pmdc_verification_decided"
	EventProfileVerified       AuditEvent = "doctor_profile_verified"
	EventTokenIssued           AuditEvent = "token_issued"
	EventAuthFailed            AuditEvent = "auth_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationRequested: CategoryCompliance,
	EventVerificationDecided:   CategoryCompliance,
	EventProfileVerified:       CategoryCompliance,
	EventAuthFailed:            CategorySecurity,
	EventTokenIssued:           CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

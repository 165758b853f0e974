package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store implements audit.Store by producing each event to a Kafka topic.
// Records are keyed by doctor so a doctor's events stay ordered within a
// partition.
type Store struct {
	producer Producer
	topic    string
}

// New creates a Kafka-backed audit store.
func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// Payload is the JSON record published for each audit event.
type Payload struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Timestamp     string `json:"timestamp"`
	DoctorID      string `json:"doctor_id,omitempty"`
	LogEntryID    string `json:"log_entry_id,omitempty"`
	Action        string `json:"action"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ReasonCode    string `json:"reason_code,omitempty"`
	SubjectIDHash string `json:"subject_id_hash,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ClientAgent   string `json:"client_agent,omitempty"`
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload := Payload{
		ID:            uuid.NewString(),
		Category:      string(audit.AuditEvent(event.Action).Category()),
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		ReasonCode:    event.ReasonCode,
		SubjectIDHash: event.SubjectIDHash,
		RequestID:     event.RequestID,
		ClientAgent:   event.ClientAgent,
	}
	var key []byte
	if !event.DoctorID.IsNil() {
		payload.DoctorID = event.DoctorID.String()
		key = []byte(payload.DoctorID)
	}
	if !event.LogEntryID.IsNil() {
		payload.LogEntryID = event.LogEntryID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   key,
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(payload.Category)},
			{Key: "action", Value: []byte(payload.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Decode parses a published record value back into its event ID and event.
func Decode(value []byte) (uuid.UUID, audit.Event, error) {
	var payload Payload
	if err := json.Unmarshal(value, &payload); err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	eventID, err := uuid.Parse(payload.ID)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse audit event id: %w", err)
	}
	if payload.Action == "" {
		return uuid.Nil, audit.Event{}, errors.New("audit payload has no action")
	}
	ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}

	event := audit.Event{
		Category:      audit.EventCategory(payload.Category),
		Timestamp:     ts,
		Action:        payload.Action,
		Decision:      payload.Decision,
		Reason:        payload.Reason,
		ReasonCode:    payload.ReasonCode,
		SubjectIDHash: payload.SubjectIDHash,
		RequestID:     payload.RequestID,
		ClientAgent:   payload.ClientAgent,
	}
	if payload.DoctorID != "" {
		if event.DoctorID, err = id.ParseDoctorID(payload.DoctorID); err != nil {
			return uuid.Nil, audit.Event{}, err
		}
	}
	if payload.LogEntryID != "" {
		if event.LogEntryID, err = id.ParseLogEntryID(payload.LogEntryID); err != nil {
			return uuid.Nil, audit.Event{}, err
		}
	}
	return eventID, event, nil
}

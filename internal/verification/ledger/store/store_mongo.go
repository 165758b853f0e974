package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

// MongoCollection is the collection holding ledger documents.
const MongoCollection = "verification_logs"

// MongoStore persists ledger entries as documents.
type MongoStore struct {
	coll  *mongo.Collection
	codec codec
}

func NewMongo(db *mongo.Database, opts ...Option) *MongoStore {
	return &MongoStore{coll: db.Collection(MongoCollection), codec: newCodec(opts)}
}

// EnsureIndexes creates the per-doctor history index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create verification log index: %w", err)
	}
	return nil
}

type entryDocument struct {
	ID         string    `bson:"_id"`
	DoctorID   string    `bson:"doctor_id"`
	PMDCNumber string    `bson:"pmdc_number"`
	FullName   string    `bson:"full_name"`
	FatherName string    `bson:"father_name"`
	Status     string    `bson:"status"`
	Reason     string    `bson:"reason"`
	ReasonCode string    `bson:"reason_code"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (s *MongoStore) Create(ctx context.Context, entry *ledger.Entry) error {
	sealed, err := s.codec.seal(entry)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, entryDocument{
		ID:         entry.ID.String(),
		DoctorID:   entry.DoctorID.String(),
		PMDCNumber: sealed.PMDCNumber,
		FullName:   sealed.FullName,
		FatherName: sealed.FatherName,
		Status:     string(entry.Status),
		Reason:     entry.Reason,
		ReasonCode: entry.ReasonCode,
		CreatedAt:  entry.CreatedAt.UTC(),
		UpdatedAt:  entry.UpdatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert verification log: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, entryID id.LogEntryID) (*ledger.Entry, error) {
	var doc entryDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": entryID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification log: %w", err)
	}
	return s.toEntry(doc)
}

func (s *MongoStore) ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]*ledger.Entry, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"doctor_id": doctorID.String()},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list verification logs: %w", err)
	}
	defer cur.Close(ctx)

	var out []*ledger.Entry
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode verification log: %w", err)
		}
		entry, err := s.toEntry(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification logs: %w", err)
	}
	return out, nil
}

// Decide filters on status so only a pending document is updated.
func (s *MongoStore) Decide(ctx context.Context, entryID id.LogEntryID, decision ledger.Decision, at time.Time) (*ledger.Entry, error) {
	var doc entryDocument
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": entryID.String(), "status": string(ledger.StatusPending)},
		bson.M{"$set": bson.M{
			"status":      string(decision.Status),
			"reason":      decision.Reason,
			"reason_code": decision.ReasonCode,
			"updated_at":  at.UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return s.toEntry(doc)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("decide verification log: %w", err)
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": entryID.String()})
	if err != nil {
		return nil, fmt.Errorf("check verification log: %w", err)
	}
	if n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

func (s *MongoStore) toEntry(doc entryDocument) (*ledger.Entry, error) {
	entryID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("parse verification log id: %w", err)
	}
	doctorID, err := uuid.Parse(doc.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("parse doctor id: %w", err)
	}
	entry := &ledger.Entry{
		ID:         id.LogEntryID(entryID),
		DoctorID:   id.DoctorID(doctorID),
		PMDCNumber: doc.PMDCNumber,
		FullName:   doc.FullName,
		FatherName: doc.FatherName,
		Status:     ledger.Status(doc.Status),
		Reason:     doc.Reason,
		ReasonCode: doc.ReasonCode,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if err := s.codec.open(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

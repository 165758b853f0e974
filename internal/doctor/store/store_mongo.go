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

	"medverify/internal/doctor"
	"medverify/internal/verification"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/privacy"
	"medverify/pkg/platform/sentinel"
)

// MongoCollection is the collection holding doctor profiles.
const MongoCollection = "doctors"

type MongoStore struct {
	coll   *mongo.Collection
	sealer *privacy.Sealer
}

func NewMongo(db *mongo.Database, sealer *privacy.Sealer) *MongoStore {
	return &MongoStore{coll: db.Collection(MongoCollection), sealer: sealer}
}

type profileDocument struct {
	ID                 string    `bson:"_id"`
	FullName           string    `bson:"full_name"`
	Email              string    `bson:"email"`
	PMDCNumber         string    `bson:"pmdc_number"`
	VerificationStatus string    `bson:"verification_status"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func (s *MongoStore) Create(ctx context.Context, profile *doctor.Profile) error {
	email, err := s.sealer.Seal(profile.Email)
	if err != nil {
		return fmt.Errorf("seal email: %w", err)
	}
	_, err = s.coll.InsertOne(ctx, profileDocument{
		ID:                 profile.ID.String(),
		FullName:           profile.FullName,
		Email:              email,
		PMDCNumber:         profile.PMDCNumber,
		VerificationStatus: string(profile.VerificationStatus),
		CreatedAt:          profile.CreatedAt.UTC(),
		UpdatedAt:          profile.UpdatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, doctorID id.DoctorID) (*doctor.Profile, error) {
	var doc profileDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": doctorID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find doctor: %w", err)
	}
	return s.toProfile(doc)
}

func (s *MongoStore) Transition(ctx context.Context, doctorID id.DoctorID, from, to verification.ProfileStatus, pmdcNumber string, at time.Time) (*doctor.Profile, error) {
	var doc profileDocument
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": doctorID.String(), "verification_status": string(from)},
		bson.M{"$set": bson.M{
			"verification_status": string(to),
			"pmdc_number":         pmdcNumber,
			"updated_at":          at.UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return s.toProfile(doc)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update doctor status: %w", err)
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": doctorID.String()})
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

func (s *MongoStore) toProfile(doc profileDocument) (*doctor.Profile, error) {
	doctorID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("parse doctor id: %w", err)
	}
	email, err := s.sealer.Open(doc.Email)
	if err != nil {
		return nil, fmt.Errorf("open email: %w", err)
	}
	return &doctor.Profile{
		ID:                 id.DoctorID(doctorID),
		FullName:           doc.FullName,
		Email:              email,
		PMDCNumber:         doc.PMDCNumber,
		VerificationStatus: verification.ProfileStatus(doc.VerificationStatus),
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}, nil
}

package handler

import (
	"strings"
	"time"

	"medverify/internal/doctor"
	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
)

// RegisterDoctorRequest creates a profile and its first verification entry.
type RegisterDoctorRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	PMDCNumber string `json:"pmdcNumber"`
	FatherName string `json:"fatherName"`
}

func (r *RegisterDoctorRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.PMDCNumber = strings.TrimSpace(r.PMDCNumber)
	r.FatherName = strings.TrimSpace(r.FatherName)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.PMDCNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "pmdcNumber is required")
	}
	return nil
}

// OpenVerificationRequest opens a new pending entry for an existing doctor.
type OpenVerificationRequest struct {
	DoctorID   string `json:"doctorId"`
	PMDCNumber string `json:"pmdcNumber"`
	Name       string `json:"name"`
	FatherName string `json:"fatherName"`

	doctorID id.DoctorID
}

func (r *OpenVerificationRequest) Validate() error {
	doctorID, err := id.ParseDoctorID(r.DoctorID)
	if err != nil {
		return err
	}
	r.doctorID = doctorID
	return nil
}

// VerifyRequest asks the engine to decide a pending entry.
type VerifyRequest struct {
	ID         string `json:"id"`
	PMDCNumber string `json:"pmdcNumber"`
	Name       string `json:"name"`
	FatherName string `json:"fatherName"`

	logEntryID id.LogEntryID
}

func (r *VerifyRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "verification log id is required")
	}
	logEntryID, err := id.ParseLogEntryID(r.ID)
	if err != nil {
		return err
	}
	r.logEntryID = logEntryID
	r.PMDCNumber = strings.TrimSpace(r.PMDCNumber)
	r.Name = strings.TrimSpace(r.Name)
	if r.PMDCNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "pmdcNumber is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type RegisterDoctorResponse struct {
	ID                 string `json:"_id"`
	VerificationLogID  string `json:"verificationLogId"`
	VerificationStatus string `json:"verificationStatus"`
}

type EntryResponse struct {
	ID         string    `json:"id"`
	DoctorID   string    `json:"doctorId"`
	PMDCNumber string    `json:"pmdcNumber"`
	FullName   string    `json:"fullName"`
	FatherName string    `json:"fatherName,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	ReasonCode string    `json:"reasonCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toEntryResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:         e.ID.String(),
		DoctorID:   e.DoctorID.String(),
		PMDCNumber: e.PMDCNumber,
		FullName:   e.FullName,
		FatherName: e.FatherName,
		Status:     string(e.Status),
		Reason:     e.Reason,
		ReasonCode: e.ReasonCode,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

// RegistryRecord echoes the registry's values for a verified doctor.
type RegistryRecord struct {
	RegistrationNumber string `json:"registrationNumber"`
	FullName           string `json:"fullName"`
	FatherName         string `json:"fatherName"`
}

type VerifiedResponse struct {
	ID          string         `json:"_id"`
	AccessToken string         `json:"accessToken"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Verified    bool           `json:"verified"`
	Data        RegistryRecord `json:"data"`
}

type RejectedResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

type ProfileResponse struct {
	ID                 string `json:"_id"`
	FullName           string `json:"fullName"`
	Email              string `json:"email,omitempty"`
	PMDCNumber         string `json:"pmdcNumber"`
	VerificationStatus string `json:"verificationStatus"`
}

func toProfileResponse(p *doctor.Profile) ProfileResponse {
	return ProfileResponse{
		ID:                 p.ID.String(),
		FullName:           p.FullName,
		Email:              p.Email,
		PMDCNumber:         p.PMDCNumber,
		VerificationStatus: string(p.VerificationStatus),
	}
}

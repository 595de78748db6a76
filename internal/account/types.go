package account

import (
	"encoding/json"
	"time"
)

// Account links a caretaker to their patient. The caretaker phone number is
// the account identity; every medicine and dose log carries it as OwnerID.
type Account struct {
	CaretakerPhone string `json:"caretaker_phone" gorm:"primaryKey"`
	PatientPhone   string `json:"patient_phone"`
	PasswordHash   string `json:"-"`

	// Biometric enrolment: an opaque face image reference plus the
	// descriptor vector produced by the external matcher, stored as JSON.
	FaceImage      string `json:"-"`
	FaceDescriptor string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Descriptor decodes the stored face descriptor vector. A malformed blob is
// treated as absent.
func (a *Account) Descriptor() []float64 {
	if a.FaceDescriptor == "" {
		return nil
	}
	var v []float64
	if err := json.Unmarshal([]byte(a.FaceDescriptor), &v); err != nil {
		return nil
	}
	return v
}

// SetDescriptor encodes and stores a face descriptor vector.
func (a *Account) SetDescriptor(v []float64) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	a.FaceDescriptor = string(data)
}

package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRevoked is returned by Revoke when the prescription is no longer
// valid.
var ErrAlreadyRevoked = errors.New("prescription already revoked")

type Repository interface {
	// Create stores fp and its items.
	Create(ctx context.Context, fp *FormalPrescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*FormalPrescription, error)
	SetSignature(ctx context.Context, id uuid.UUID, hash string, signedAt time.Time, credential string) error
	// Revoke only applies to a valid prescription.
	Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*FormalPrescription, error)

	// ApplyActiveUpsert reports false, writing nothing, when a newer
	// prescription already holds the active entry for the medication.
	ApplyActiveUpsert(ctx context.Context, u ActiveUpsert) (bool, error)
	// DeactivateActive ends every active entry that came from prescriptionID.
	DeactivateActive(ctx context.Context, prescriptionID uuid.UUID, at time.Time) (int64, error)
	ListActive(ctx context.Context, patientID uuid.UUID) ([]*ActivePrescription, error)
}

type MedicationRepository interface {
	GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error)
	CreateMedication(ctx context.Context, m *Medication) error
}

// Store serves both prescriptions and the medication catalogue.
type Store interface {
	Repository
	MedicationRepository
}

package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetClinician(ctx context.Context, id uuid.UUID) (*Clinician, error)
	CreatePatient(ctx context.Context, p *Patient) error
	CreateClinician(ctx context.Context, c *Clinician) error
}

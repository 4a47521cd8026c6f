// Package identity looks up patients and clinicians. Account management lives
// outside this service; these records are read-mostly reference data.
package identity

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	AssignedDoctorID *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// IsAssignedTo reports whether clinicianID is the patient's treating doctor.
func (p *Patient) IsAssignedTo(clinicianID uuid.UUID) bool {
	return p.AssignedDoctorID != nil && *p.AssignedDoctorID == clinicianID
}

// Clinician is a treating doctor. Credential is the professional registry
// number recorded in signatures.
type Clinician struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Credential string    `db:"credential" json:"credential"`
	Email      *string   `db:"email" json:"email,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

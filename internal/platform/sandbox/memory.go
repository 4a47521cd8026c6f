package sandbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/alert"
	"github.com/telemon/telemon/internal/domain/consultation"
	"github.com/telemon/telemon/internal/domain/dailylog"
	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/domain/prescription"
	"github.com/telemon/telemon/internal/platform/audit"
)

// MemoryStores holds in-process stores for a dry run: the seeder exercises
// the real services and rules without a database.
type MemoryStores struct {
	People        *identity.MemoryRepo
	Reports       *dailylog.MemoryRepo
	Alerts        *alert.MemoryRepo
	Medications   *prescription.MemoryRepo
	Consultations *consultation.MemoryRepo
}

func NewMemoryStores() *MemoryStores {
	m := &MemoryStores{
		People:        identity.NewMemoryRepo(),
		Reports:       dailylog.NewMemoryRepo(),
		Medications:   prescription.NewMemoryRepo(),
		Consultations: consultation.NewMemoryRepo(),
	}
	m.Alerts = alert.NewMemoryRepo(m.assignedDoctor)
	return m
}

func (m *MemoryStores) assignedDoctor(patientID uuid.UUID) *uuid.UUID {
	p, err := m.People.GetPatient(context.Background(), patientID)
	if err != nil {
		return nil
	}
	return p.AssignedDoctorID
}

// Targets wires the domain services over the stores.
func (m *MemoryStores) Targets(rec audit.Recorder, logger zerolog.Logger) Targets {
	return Targets{
		People:        m.People,
		Medications:   m.Medications,
		Reports:       dailylog.NewService(m.Reports, m.Alerts, m.People, inline{}, Discard{}, rec, logger),
		Consultations: consultation.NewService(m.Consultations, m.People, rec, logger),
	}
}

// inline runs a unit of work directly; the memory stores have no
// transactions.
type inline struct{}

func (inline) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

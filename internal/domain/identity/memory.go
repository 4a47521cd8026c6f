package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

// MemoryRepo is an in-process Repository. It backs `seed --dry-run` and the
// tests of every domain package that looks up patients or clinicians.
type MemoryRepo struct {
	mu         sync.RWMutex
	patients   map[uuid.UUID]*Patient
	clinicians map[uuid.UUID]*Clinician
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		patients:   make(map[uuid.UUID]*Patient),
		clinicians: make(map[uuid.UUID]*Clinician),
	}
}

func (m *MemoryRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryRepo) GetClinician(_ context.Context, id uuid.UUID) (*Clinician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clinicians[id]
	if !ok {
		return nil, apperr.NotFound("clinician %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) CreatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *MemoryRepo) CreateClinician(_ context.Context, c *Clinician) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.clinicians[c.ID] = &cp
	return nil
}

func (m *MemoryRepo) Clinicians() []*Clinician {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Clinician, 0, len(m.clinicians))
	for _, c := range m.clinicians {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

package consultation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

// MemoryRepo is an in-process Repository. It backs `seed --dry-run` and the
// tests of packages that read consultations. Conditional writes hold the
// lock across check and set, like the SQL WHERE status = 'DRAFT' AND
// revision = $n.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Consultation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[uuid.UUID]*Consultation)}
}

func clone(c *Consultation) *Consultation {
	cp := *c
	cp.DiagnosisCodes = append([]string(nil), c.DiagnosisCodes...)
	return &cp
}

func (m *MemoryRepo) Create(_ context.Context, c *Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.items[c.ID] = clone(c)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("consultation %s not found", id)
	}
	return clone(c), nil
}

func (m *MemoryRepo) UpdateDraft(_ context.Context, c *Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[c.ID]
	if !ok || cur.Status != StatusDraft || cur.Revision != c.Revision {
		return ErrNotDraft
	}
	c.Revision++
	m.items[c.ID] = clone(c)
	return nil
}

func (m *MemoryRepo) Finalize(_ context.Context, id uuid.UUID, sig Signature) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || c.Status != StatusDraft || c.Revision != sig.Revision {
		return nil, ErrNotDraft
	}
	at := sig.SignedAt
	c.Status = StatusFinalized
	c.SignatureHash = &sig.Hash
	c.SignedAt = &at
	c.SignedCredential = &sig.Credential
	c.UpdatedAt = at
	return clone(c), nil
}

func (m *MemoryRepo) Cancel(_ context.Context, id uuid.UUID, reason string, at time.Time) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || c.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	c.Status = StatusCancelled
	c.CancellationReason = &reason
	c.CancelledAt = &at
	c.UpdatedAt = at
	return clone(c), nil
}

// All returns a copy of every stored consultation in no particular order.
func (m *MemoryRepo) All() []*Consultation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Consultation, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, clone(c))
	}
	return out
}

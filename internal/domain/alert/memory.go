package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

// MemoryRepo is an in-process Repository. It backs `seed --dry-run` and the
// tests of packages that raise alerts. Clinician scoping is resolved through
// doctorOf.
type MemoryRepo struct {
	mu       sync.Mutex
	alerts   map[uuid.UUID]*Alert
	doctorOf func(patientID uuid.UUID) *uuid.UUID
}

func NewMemoryRepo(doctorOf func(patientID uuid.UUID) *uuid.UUID) *MemoryRepo {
	return &MemoryRepo{alerts: make(map[uuid.UUID]*Alert), doctorOf: doctorOf}
}

func (m *MemoryRepo) Create(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, apperr.NotFound("alert %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepo) ApplyTransition(_ context.Context, t Transition) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[t.AlertID]
	if !ok || a.Status != t.From {
		return nil, ErrStaleStatus
	}
	a.Status = t.To
	if t.Notes != nil {
		a.ResolutionNotes = t.Notes
	}
	if t.ContactMethod != nil {
		a.ContactMethod = t.ContactMethod
	}
	at := t.At
	a.UpdatedAt = at
	switch stampColumns[t.To] {
	case "viewed_at":
		a.ViewedAt = &at
	case "contacted_at":
		a.ContactedAt = &at
	case "resolved_at":
		a.ResolvedAt = &at
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepo) owned(clinicianID uuid.UUID) []*Alert {
	var out []*Alert
	for _, a := range m.alerts {
		if d := m.doctorOf(a.PatientID); d != nil && *d == clinicianID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MemoryRepo) ListForClinician(_ context.Context, f Filter) ([]*Alert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Alert
	for _, a := range m.owned(f.ClinicianID) {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (m *MemoryRepo) Stats(_ context.Context, clinicianID uuid.UUID, slaCutoff time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := newStats()
	for _, a := range m.owned(clinicianID) {
		st.Total++
		st.ByStatus[a.Status]++
		st.BySeverity[a.Severity]++
		if a.Status == StatusPending && a.CreatedAt.Before(slaCutoff) {
			st.SLABreached++
		}
	}
	st.Pending = st.ByStatus[StatusPending]
	return st, nil
}

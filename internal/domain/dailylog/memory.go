package dailylog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

// MemoryRepo is an in-process Repository. It backs `seed --dry-run` and the
// seeder tests.
type MemoryRepo struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*DailyReport
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{reports: make(map[uuid.UUID]*DailyReport)}
}

func (m *MemoryRepo) Create(_ context.Context, r *DailyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reports {
		if existing.PatientID == r.PatientID && existing.ReportDate.Equal(r.ReportDate) {
			return ErrDuplicateDate
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*DailyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, apperr.NotFound("daily report %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepo) RecentWithMood(_ context.Context, patientID uuid.UUID, before time.Time, n int) ([]*DailyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DailyReport
	for _, r := range m.reports {
		if r.PatientID == patientID && r.ReportDate.Before(before) && r.MoodLevel != nil {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Count returns how many reports are stored.
func (m *MemoryRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

package prescription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

// MemoryRepo is an in-process Store. It backs `seed --dry-run` (medication
// catalogue) and the prescription tests.
type MemoryRepo struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]*FormalPrescription
	medications   map[uuid.UUID]*Medication
	active        map[uuid.UUID]*ActivePrescription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		prescriptions: make(map[uuid.UUID]*FormalPrescription),
		medications:   make(map[uuid.UUID]*Medication),
		active:        make(map[uuid.UUID]*ActivePrescription),
	}
}

func cloneRx(fp *FormalPrescription) *FormalPrescription {
	cp := *fp
	cp.Items = append([]Item(nil), fp.Items...)
	return &cp
}

func (m *MemoryRepo) Create(_ context.Context, fp *FormalPrescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fp.ID == uuid.Nil {
		fp.ID = uuid.New()
	}
	for i := range fp.Items {
		if fp.Items[i].ID == uuid.Nil {
			fp.Items[i].ID = uuid.New()
		}
		fp.Items[i].FormalPrescriptionID = fp.ID
	}
	m.prescriptions[fp.ID] = cloneRx(fp)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*FormalPrescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.prescriptions[id]
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	return cloneRx(fp), nil
}

func (m *MemoryRepo) SetSignature(_ context.Context, id uuid.UUID, hash string, signedAt time.Time, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.prescriptions[id]
	if !ok || fp.SignatureHash != nil {
		return fmt.Errorf("prescription %s is missing or already signed", id)
	}
	fp.SignatureHash = &hash
	fp.SignedAt = &signedAt
	fp.SignedCredential = &credential
	return nil
}

func (m *MemoryRepo) Revoke(_ context.Context, id uuid.UUID, reason string, at time.Time) (*FormalPrescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.prescriptions[id]
	if !ok || !fp.IsValid {
		return nil, ErrAlreadyRevoked
	}
	fp.IsValid = false
	fp.RevokedAt = &at
	fp.RevocationReason = &reason
	return cloneRx(fp), nil
}

func (m *MemoryRepo) ApplyActiveUpsert(_ context.Context, u ActiveUpsert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.active {
		if a.PatientID == u.PatientID && a.MedicationID == u.MedicationID && a.IsActive &&
			a.FormalPrescriptionID != u.FormalPrescriptionID && a.StartDate.After(u.StartDate) {
			return false, nil
		}
	}
	var existing *ActivePrescription
	for _, a := range m.active {
		switch {
		case a.FormalPrescriptionID == u.FormalPrescriptionID && a.MedicationID == u.MedicationID:
			existing = a
		case a.PatientID == u.PatientID && a.MedicationID == u.MedicationID && a.IsActive:
			at := u.At
			a.IsActive = false
			a.EndDate = &at
		}
	}
	if existing == nil {
		existing = &ActivePrescription{ID: uuid.New(), PatientID: u.PatientID, MedicationID: u.MedicationID, FormalPrescriptionID: u.FormalPrescriptionID}
		m.active[existing.ID] = existing
	}
	end := u.EndDate
	existing.Dosage = u.Dosage
	existing.Frequency = u.Frequency
	existing.StartDate = u.StartDate
	existing.EndDate = &end
	existing.IsActive = true
	return true, nil
}

func (m *MemoryRepo) DeactivateActive(_ context.Context, prescriptionID uuid.UUID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.active {
		if a.FormalPrescriptionID == prescriptionID && a.IsActive {
			end := at
			a.IsActive = false
			a.EndDate = &end
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) ListActive(_ context.Context, patientID uuid.UUID) ([]*ActivePrescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ActivePrescription
	for _, a := range m.active {
		if a.PatientID == patientID && a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

// History returns every active-list row for patientID, active or not.
func (m *MemoryRepo) History(patientID uuid.UUID) []ActivePrescription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActivePrescription
	for _, a := range m.active {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out
}

func (m *MemoryRepo) GetMedication(_ context.Context, id uuid.UUID) (*Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.medications[id]
	if !ok {
		return nil, apperr.NotFound("medication %s not found", id)
	}
	cp := *med
	return &cp, nil
}

func (m *MemoryRepo) CreateMedication(_ context.Context, med *Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	cp := *med
	m.medications[med.ID] = &cp
	return nil
}

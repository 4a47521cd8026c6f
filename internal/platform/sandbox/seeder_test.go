package sandbox

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/alert"
	"github.com/telemon/telemon/internal/domain/consultation"
	"github.com/telemon/telemon/internal/platform/audit"
)

func newSeeder(cfg SeedConfig) (*Seeder, *MemoryStores) {
	st := NewMemoryStores()
	logger := zerolog.Nop()
	return NewSeeder(cfg, st.Targets(audit.NewLogSink(logger), logger), logger), st
}

func TestSeed_Counts(t *testing.T) {
	cfg := SeedConfig{Clinicians: 2, PatientsPerClinician: 3, ReportDays: 10, Seed: 42}
	s, st := newSeeder(cfg)

	res, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if res.Clinicians != 2 || res.Patients != 6 {
		t.Errorf("expected 2 clinicians and 6 patients, got %+v", res)
	}
	if res.DailyReports != 60 || st.Reports.Count() != 60 {
		t.Errorf("expected 60 daily reports, got %d (stored %d)", res.DailyReports, st.Reports.Count())
	}
	if res.Consultations != 6 {
		t.Errorf("expected 6 consultations, got %d", res.Consultations)
	}
	if res.Medications != len(catalogue) {
		t.Errorf("expected %d medications, got %d", len(catalogue), res.Medications)
	}
	if res.Alerts > res.DailyReports {
		t.Errorf("alerts (%d) cannot exceed reports (%d)", res.Alerts, res.DailyReports)
	}
}

func TestSeed_AlertsScopedToAssignedClinician(t *testing.T) {
	s, st := newSeeder(SeedConfig{Clinicians: 2, PatientsPerClinician: 4, ReportDays: 14, Seed: 7})
	res, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	// Alerts are listed per clinician, so the sum over every clinician is the total.
	seen := 0
	for _, c := range st.People.Clinicians() {
		_, total, err := st.Alerts.ListForClinician(context.Background(), alert.Filter{ClinicianID: c.ID, Limit: 1000})
		if err != nil {
			t.Fatalf("ListForClinician() error: %v", err)
		}
		seen += total
	}
	if seen != res.Alerts {
		t.Errorf("expected %d alerts across clinicians, got %d", res.Alerts, seen)
	}
}

func TestSeed_ConsultationsAreSigned(t *testing.T) {
	s, st := newSeeder(SeedConfig{Clinicians: 1, PatientsPerClinician: 2, ReportDays: 1, Seed: 3})
	if _, err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	for _, c := range st.Consultations.All() {
		if c.Status != consultation.StatusFinalized {
			t.Errorf("consultation %s: expected FINALIZED, got %s", c.ID, c.Status)
		}
		if c.SignatureHash == nil || c.SignedCredential == nil {
			t.Errorf("consultation %s is not signed", c.ID)
		}
	}
}

func TestSeed_Deterministic(t *testing.T) {
	cfg := SeedConfig{Clinicians: 1, PatientsPerClinician: 2, ReportDays: 7, Seed: 99}
	a, _ := newSeeder(cfg)
	b, _ := newSeeder(cfg)

	ra, err := a.Seed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rb, err := b.Seed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ra.Alerts != rb.Alerts {
		t.Errorf("same seed produced %d and %d alerts", ra.Alerts, rb.Alerts)
	}
}

func TestClamp(t *testing.T) {
	if clamp(5, -3, 3) != 3 || clamp(-9, -3, 3) != -3 || clamp(1, -3, 3) != 1 {
		t.Error("clamp out of range")
	}
}

package consultation

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func signedFixture() *Consultation {
	return &Consultation{
		ID:                   uuid.MustParse("6f1d2a7e-1c5b-4b59-9b0a-1d3f0e2c4a10"),
		PatientID:            uuid.MustParse("0b9a8c7d-6e5f-4a3b-8c1d-2e3f4a5b6c7d"),
		DoctorID:             uuid.MustParse("9c8b7a6d-5e4f-4321-8fed-cba987654321"),
		ScheduledAt:          time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC),
		DurationMinutes:      50,
		Modality:             strPtr("video"),
		Anamnesis:            strPtr("Relato extenso do paciente."),
		DiagnosticHypothesis: strPtr("Episódio depressivo"),
		TreatmentPlan:        strPtr("Sertralina 50mg"),
		DiagnosisCodes:       []string{"F32.1"},
	}
}

func TestComputeSignature_SensitiveToSignedFields(t *testing.T) {
	at := time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)
	base, err := ComputeSignature(signedFixture(), at, "CRM-MG 44120")
	if err != nil {
		t.Fatal(err)
	}

	mutations := map[string]func(c *Consultation){
		"patient":    func(c *Consultation) { c.PatientID = uuid.New() },
		"doctor":     func(c *Consultation) { c.DoctorID = uuid.New() },
		"scheduled":  func(c *Consultation) { c.ScheduledAt = c.ScheduledAt.Add(time.Minute) },
		"duration":   func(c *Consultation) { c.DurationMinutes = 30 },
		"modality":   func(c *Consultation) { c.Modality = strPtr("presencial") },
		"hypothesis": func(c *Consultation) { c.DiagnosticHypothesis = strPtr("TAG") },
		"plan":       func(c *Consultation) { c.TreatmentPlan = strPtr("Fluoxetina 20mg") },
		"codes":      func(c *Consultation) { c.DiagnosisCodes = []string{"F32.1", "F41.1"} },
	}
	for name, mutate := range mutations {
		c := signedFixture()
		mutate(c)
		got, _ := ComputeSignature(c, at, "CRM-MG 44120")
		if got == base {
			t.Errorf("changing %s must change the signature", name)
		}
	}

	if got, _ := ComputeSignature(signedFixture(), at.Add(time.Second), "CRM-MG 44120"); got == base {
		t.Error("signing time must be covered")
	}
	if got, _ := ComputeSignature(signedFixture(), at, "CRM-MG 44121"); got == base {
		t.Error("credential must be covered")
	}
}

func TestComputeSignature_ExcludesAnamnesis(t *testing.T) {
	at := time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)
	a, _ := ComputeSignature(signedFixture(), at, "CRM")
	c := signedFixture()
	c.Anamnesis = strPtr("Outro texto clínico completamente diferente.")
	b, _ := ComputeSignature(c, at, "CRM")
	if a != b {
		t.Error("anamnesis must not be part of the signed payload")
	}
}

func TestDiagnosisCodePattern(t *testing.T) {
	valid := []string{"A00", "F32", "F32.1", "F32.10", "Z99.9"}
	invalid := []string{"a00", "F3", "F320", "F32.", "F32.123", "FF32", " F32", "F32.1a"}
	for _, c := range valid {
		if !DiagnosisCodePattern.MatchString(c) {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range invalid {
		if DiagnosisCodePattern.MatchString(c) {
			t.Errorf("%q should be invalid", c)
		}
	}
}

// Package sandbox seeds demo data: clinicians, assigned patients, a medication
// catalogue, a trailing window of daily reports and one signed consultation
// per patient. Reports go through the daily report service, so risk alerts
// are raised exactly as they would be in production.
package sandbox

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/consultation"
	"github.com/telemon/telemon/internal/domain/dailylog"
	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/domain/prescription"
)

// SeedConfig controls the volume of generated data. Seed 0 picks a random
// seed.
type SeedConfig struct {
	Clinicians           int    `json:"clinicians"`
	PatientsPerClinician int    `json:"patients_per_clinician"`
	ReportDays           int    `json:"report_days"`
	Seed                 uint64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Clinicians: 3, PatientsPerClinician: 8, ReportDays: 14}
}

// SeedResult summarizes a run.
type SeedResult struct {
	Clinicians    int           `json:"clinicians"`
	Patients      int           `json:"patients"`
	Medications   int           `json:"medications"`
	DailyReports  int           `json:"daily_reports"`
	Alerts        int           `json:"alerts"`
	Consultations int           `json:"consultations"`
	Duration      time.Duration `json:"duration"`
}

// Targets are the stores and services the seeder writes through.
type Targets struct {
	People        identity.Repository
	Medications   prescription.MedicationRepository
	Reports       *dailylog.Service
	Consultations *consultation.Service
}

type Seeder struct {
	cfg    SeedConfig
	faker  *gofakeit.Faker
	t      Targets
	logger zerolog.Logger
	now    func() time.Time
}

func NewSeeder(cfg SeedConfig, t Targets, logger zerolog.Logger) *Seeder {
	return &Seeder{cfg: cfg, faker: gofakeit.New(cfg.Seed), t: t, logger: logger, now: time.Now}
}

type catalogueEntry struct {
	name        string
	ingredient  string
	indications []string
	controlled  bool
	tags        []string
}

var catalogue = []catalogueEntry{
	{"Sertralina 50mg", "sertralina", []string{"F32.0", "F32.1", "F33.1", "F41.1"}, false, nil},
	{"Fluoxetina 20mg", "fluoxetina", []string{"F32.0", "F32.1", "F42"}, false, nil},
	{"Escitalopram 10mg", "escitalopram", []string{"F32.1", "F41.1"}, false, nil},
	{"Clonazepam 2mg", "clonazepam", []string{"F41.0", "F41.1"}, true, []string{"benzodiazepine"}},
	{"Quetiapina 25mg", "quetiapina", []string{"F31.1", "F20.0"}, true, nil},
	{"Carbonato de Lítio 300mg", "lítio", []string{"F31.1", "F31.3"}, false, []string{"narrow_therapeutic_index"}},
	{"Amoxicilina 500mg", "amoxicilina", []string{"J01.9", "J02.9"}, false, []string{prescription.TagAntibiotic}},
}

var diagnosisPool = []string{"F32.1", "F33.1", "F41.1", "F31.1", "F41.0"}

// Seed generates the configured volume of data and reports what it wrote.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	res := &SeedResult{}

	for _, e := range catalogue {
		ingredient := e.ingredient
		m := &prescription.Medication{
			Name:             e.name,
			ActiveIngredient: &ingredient,
			IndicationCodes:  e.indications,
			IsControlled:     e.controlled,
			Tags:             e.tags,
		}
		if m.Tags == nil {
			m.Tags = []string{}
		}
		if err := s.t.Medications.CreateMedication(ctx, m); err != nil {
			return nil, fmt.Errorf("seed medication %s: %w", e.name, err)
		}
		res.Medications++
	}

	for i := 0; i < s.cfg.Clinicians; i++ {
		email := s.faker.Email()
		doc := &identity.Clinician{
			ID:         uuid.New(),
			Name:       "Dr(a). " + s.faker.Name(),
			Credential: fmt.Sprintf("CRM-%s %s", s.faker.StateAbr(), s.faker.Numerify("######")),
			Email:      &email,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.t.People.CreateClinician(ctx, doc); err != nil {
			return nil, fmt.Errorf("seed clinician: %w", err)
		}
		res.Clinicians++

		for j := 0; j < s.cfg.PatientsPerClinician; j++ {
			if err := s.seedPatient(ctx, doc, res); err != nil {
				return nil, err
			}
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info().
		Int("clinicians", res.Clinicians).
		Int("patients", res.Patients).
		Int("daily_reports", res.DailyReports).
		Int("alerts", res.Alerts).
		Int("consultations", res.Consultations).
		Dur("duration", res.Duration).
		Msg("demo data seeded")
	return res, nil
}

func (s *Seeder) seedPatient(ctx context.Context, doc *identity.Clinician, res *SeedResult) error {
	p := &identity.Patient{ID: uuid.New(), Name: s.faker.Name(), AssignedDoctorID: &doc.ID, CreatedAt: s.now().UTC()}
	if err := s.t.People.CreatePatient(ctx, p); err != nil {
		return fmt.Errorf("seed patient: %w", err)
	}
	res.Patients++

	today := s.now().UTC()
	// A baseline mood with a slow drift produces occasional depressive runs.
	baseline := float64(s.faker.Number(-2, 2))
	for d := s.cfg.ReportDays - 1; d >= 0; d-- {
		date := today.AddDate(0, 0, -d)
		sub, err := s.t.Reports.SubmitDailyReport(ctx, s.report(p.ID, date, baseline))
		if err != nil {
			return fmt.Errorf("seed daily report for %s: %w", p.ID, err)
		}
		res.DailyReports++
		if sub.Alert != nil {
			res.Alerts++
		}
		baseline += s.faker.Float64Range(-0.8, 0.8)
	}

	return s.seedConsultation(ctx, doc, p, res)
}

func (s *Seeder) report(patientID uuid.UUID, date time.Time, baseline float64) dailylog.SubmitInput {
	in := dailylog.SubmitInput{
		PatientID:        patientID,
		Date:             &date,
		SuicidalIdeation: s.faker.Number(1, 100) <= 2,
	}
	// Roughly one day in seven has no mood level recorded.
	if s.faker.Number(1, 7) > 1 {
		level := clamp(int(math.Round(baseline+s.faker.Float64Range(-1, 1))), -3, 3)
		in.MoodLevel = &level
		in.MoodRating = clamp(level+3, 1, 5)
	} else {
		in.MoodRating = s.faker.Number(1, 5)
	}
	anxiety := s.faker.Number(0, 3)
	irritability := s.faker.Number(0, 3)
	quality := s.faker.Number(1, 5)
	hours := math.Round(s.faker.Float64Range(3, 10)*4) / 4
	in.AnxietyLevel = &anxiety
	in.IrritabilityLevel = &irritability
	in.SleepQuality = &quality
	in.SleepHours = &hours
	if s.faker.Bool() {
		notes := s.faker.Sentence(8)
		in.Notes = &notes
	}
	return in
}

func (s *Seeder) seedConsultation(ctx context.Context, doc *identity.Clinician, p *identity.Patient, res *SeedResult) error {
	anamnesis := s.faker.Sentence(20)
	hypothesis := s.faker.Sentence(6)
	plan := s.faker.Sentence(12)
	modality := s.faker.RandomString([]string{"presencial", "video"})

	c, err := s.t.Consultations.CreateDraft(ctx, doc.ID, consultation.DraftInput{
		PatientID:            p.ID,
		ScheduledAt:          s.now().UTC().AddDate(0, 0, -s.faker.Number(1, 30)),
		DurationMinutes:      s.faker.RandomInt([]int{30, 45, 50, 60}),
		Modality:             &modality,
		Anamnesis:            &anamnesis,
		DiagnosticHypothesis: &hypothesis,
		TreatmentPlan:        &plan,
		DiagnosisCodes:       []string{s.faker.RandomString(diagnosisPool)},
	})
	if err != nil {
		return fmt.Errorf("seed consultation: %w", err)
	}
	if _, err := s.t.Consultations.Finalize(ctx, c.ID, doc.ID); err != nil {
		return fmt.Errorf("finalize seeded consultation: %w", err)
	}
	res.Consultations++
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Discard is a notifier for offline seeding, where no clinician is connected.
type Discard struct{}

func (Discard) Notify(uuid.UUID, string, interface{}) {}

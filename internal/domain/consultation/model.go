// Package consultation manages clinical encounters from editable draft to a
// signed or cancelled terminal record.
package consultation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusFinalized, StatusCancelled},
	StatusFinalized: {},
	StatusCancelled: {},
}

// CanTransition reports whether from→to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

const (
	MinAnamnesisLength = 10
	MinReasonLength    = 10
)

// DiagnosisCodePattern accepts an ICD-10 style code: A00, F32.1, F32.10.
var DiagnosisCodePattern = regexp.MustCompile(`^[A-Z]\d{2}(\.\d{1,2})?$`)

type Consultation struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID             uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ScheduledAt          time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes      int        `db:"duration_minutes" json:"duration_minutes"`
	Modality             *string    `db:"modality" json:"modality,omitempty"`
	Status               Status     `db:"status" json:"status"`
	Anamnesis            *string    `db:"anamnesis" json:"anamnesis,omitempty"`
	DiagnosticHypothesis *string    `db:"diagnostic_hypothesis" json:"diagnostic_hypothesis,omitempty"`
	TreatmentPlan        *string    `db:"treatment_plan" json:"treatment_plan,omitempty"`
	DiagnosisCodes       []string   `db:"diagnosis_codes" json:"diagnosis_codes"`
	SignatureHash        *string    `db:"signature_hash" json:"signature_hash,omitempty"`
	SignedAt             *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	SignedCredential     *string    `db:"signed_credential" json:"signed_credential,omitempty"`
	CancellationReason   *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt          *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	// Revision counts draft edits. Finalize only signs the revision it read.
	Revision             int        `db:"revision" json:"revision"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// HasDiagnosis reports whether code is among the consultation's diagnoses.
func (c *Consultation) HasDiagnosis(code string) bool {
	for _, d := range c.DiagnosisCodes {
		if d == code {
			return true
		}
	}
	return false
}

// DraftInput carries the editable fields of a draft.
type DraftInput struct {
	PatientID            uuid.UUID
	ScheduledAt          time.Time
	DurationMinutes      int
	Modality             *string
	Anamnesis            *string
	DiagnosticHypothesis *string
	TreatmentPlan        *string
	DiagnosisCodes       []string
}

func (in DraftInput) validate() []string {
	var errs []string
	if in.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if in.ScheduledAt.IsZero() {
		errs = append(errs, "scheduled_at is required")
	}
	if in.DurationMinutes < 0 {
		errs = append(errs, "duration_minutes must not be negative")
	}
	return errs
}

func (in DraftInput) apply(c *Consultation) {
	c.ScheduledAt = in.ScheduledAt
	c.DurationMinutes = in.DurationMinutes
	c.Modality = in.Modality
	c.Anamnesis = in.Anamnesis
	c.DiagnosticHypothesis = in.DiagnosticHypothesis
	c.TreatmentPlan = in.TreatmentPlan
	c.DiagnosisCodes = normalizeCodes(in.DiagnosisCodes)
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// finalizeViolations lists every reason c cannot be signed.
func finalizeViolations(c *Consultation) []string {
	var errs []string
	if n := textLength(c.Anamnesis); n < MinAnamnesisLength {
		errs = append(errs, fmt.Sprintf("anamnesis is required and must have at least %d characters (got %d)", MinAnamnesisLength, n))
	}
	if textLength(c.TreatmentPlan) == 0 {
		errs = append(errs, "treatment_plan is required")
	}
	if len(c.DiagnosisCodes) == 0 {
		errs = append(errs, "at least one diagnosis code is required")
	}
	for _, code := range c.DiagnosisCodes {
		if !DiagnosisCodePattern.MatchString(code) {
			errs = append(errs, fmt.Sprintf("diagnosis code %q does not match %s (e.g. A00, F32.1)", code, DiagnosisCodePattern))
		}
	}
	return errs
}

func textLength(s *string) int {
	if s == nil {
		return 0
	}
	return utf8.RuneCountInString(strings.TrimSpace(*s))
}

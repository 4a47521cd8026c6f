package consultation

import (
	"time"

	"github.com/telemon/telemon/internal/platform/signing"
)

// signedPayload is the canonical field set covered by a consultation
// signature. Anamnesis is not included.
type signedPayload struct {
	ConsultationID       string   `json:"consultation_id"`
	PatientID            string   `json:"patient_id"`
	DoctorID             string   `json:"doctor_id"`
	ScheduledAt          string   `json:"scheduled_at"`
	DurationMinutes      int      `json:"duration_minutes"`
	Modality             string   `json:"modality"`
	DiagnosticHypothesis string   `json:"diagnostic_hypothesis"`
	TreatmentPlan        string   `json:"treatment_plan"`
	DiagnosisCodes       []string `json:"diagnosis_codes"`
	SignedAt             string   `json:"signed_at"`
	Credential           string   `json:"credential"`
}

// ComputeSignature returns the digest of c as signed at signedAt by the
// holder of credential.
func ComputeSignature(c *Consultation, signedAt time.Time, credential string) (string, error) {
	codes := c.DiagnosisCodes
	if codes == nil {
		codes = []string{}
	}
	return signing.Digest(signedPayload{
		ConsultationID:       c.ID.String(),
		PatientID:            c.PatientID.String(),
		DoctorID:             c.DoctorID.String(),
		ScheduledAt:          signing.Timestamp(c.ScheduledAt),
		DurationMinutes:      c.DurationMinutes,
		Modality:             deref(c.Modality),
		DiagnosticHypothesis: deref(c.DiagnosticHypothesis),
		TreatmentPlan:        deref(c.TreatmentPlan),
		DiagnosisCodes:       codes,
		SignedAt:             signing.Timestamp(signedAt),
		Credential:           credential,
	})
}

// SignatureCheck is the result of recomputing a stored signature.
type SignatureCheck struct {
	ConsultationID string    `json:"consultation_id"`
	StoredHash     string    `json:"stored_hash"`
	ComputedHash   string    `json:"computed_hash"`
	SignedAt       time.Time `json:"signed_at"`
	Valid          bool      `json:"valid"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package prescription

import (
	"time"

	"github.com/telemon/telemon/internal/platform/signing"
)

type signedItem struct {
	Position     int    `json:"position"`
	MedicationID string `json:"medication_id"`
	Dosage       string `json:"dosage"`
	Quantity     string `json:"quantity"`
	Form         string `json:"form"`
	Duration     string `json:"duration"`
	Frequency    string `json:"frequency"`
	Instructions string `json:"instructions"`
}

type signedPayload struct {
	PrescriptionID string       `json:"prescription_id"`
	PatientID      string       `json:"patient_id"`
	ConsultationID string       `json:"consultation_id"`
	PrescriberID   string       `json:"prescriber_id"`
	Type           string       `json:"type"`
	ValidUntil     string       `json:"valid_until"`
	Items          []signedItem `json:"items"`
	SignedAt       string       `json:"signed_at"`
	Credential     string       `json:"credential"`
}

// ComputeSignature returns the digest of fp and its items as signed at
// signedAt by the holder of credential.
func ComputeSignature(fp *FormalPrescription, signedAt time.Time, credential string) (string, error) {
	items := make([]signedItem, len(fp.Items))
	for i, it := range fp.Items {
		items[i] = signedItem{
			Position:     it.Position,
			MedicationID: it.MedicationID.String(),
			Dosage:       it.Dosage,
			Quantity:     deref(it.Quantity),
			Form:         deref(it.Form),
			Duration:     deref(it.Duration),
			Frequency:    deref(it.Frequency),
			Instructions: deref(it.Instructions),
		}
	}
	return signing.Digest(signedPayload{
		PrescriptionID: fp.ID.String(),
		PatientID:      fp.PatientID.String(),
		ConsultationID: fp.ConsultationID.String(),
		PrescriberID:   fp.PrescriberID.String(),
		Type:           string(fp.Type),
		ValidUntil:     signing.Timestamp(fp.ValidUntil),
		Items:          items,
		SignedAt:       signing.Timestamp(signedAt),
		Credential:     credential,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Package prescription issues formal prescriptions against finalized
// consultations and keeps the patient's active medication list in sync.
package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Type string

const (
	TypeSimples        Type = "SIMPLES"
	TypeControlada     Type = "CONTROLADA"
	TypeAntimicrobiana Type = "ANTIMICROBIANA"
)

// validity is how long a prescription of each type stays valid.
var validity = map[Type]time.Duration{
	TypeSimples:        30 * 24 * time.Hour,
	TypeControlada:     30 * 24 * time.Hour,
	TypeAntimicrobiana: 10 * 24 * time.Hour,
}

func (t Type) Valid() bool {
	_, ok := validity[t]
	return ok
}

// ValidUntil returns the end of the validity window for a prescription of
// type t issued at issued.
func (t Type) ValidUntil(issued time.Time) time.Time {
	return issued.Add(validity[t])
}

const (
	MinReasonLength = 10
	// DefaultFrequency is used on the active list when an item has none.
	DefaultFrequency = "conforme orientação médica"
)

const TagAntibiotic = "antibiotic"

// Medication is reference data.
type Medication struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	ActiveIngredient *string   `db:"active_ingredient" json:"active_ingredient,omitempty"`
	IndicationCodes  []string  `db:"indication_codes" json:"indication_codes"`
	IsControlled     bool      `db:"is_controlled" json:"is_controlled"`
	Tags             []string  `db:"tags" json:"tags"`
}

func (m *Medication) HasTag(tag string) bool {
	return lo.Contains(m.Tags, tag)
}

// DetermineType classifies a prescription by its medications: any
// antibiotic makes it ANTIMICROBIANA, otherwise any controlled substance
// makes it CONTROLADA.
func DetermineType(meds []*Medication) Type {
	if lo.SomeBy(meds, func(m *Medication) bool { return m.HasTag(TagAntibiotic) }) {
		return TypeAntimicrobiana
	}
	if lo.SomeBy(meds, func(m *Medication) bool { return m.IsControlled }) {
		return TypeControlada
	}
	return TypeSimples
}

type Item struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	FormalPrescriptionID uuid.UUID `db:"formal_prescription_id" json:"formal_prescription_id"`
	Position             int       `db:"position" json:"position"`
	MedicationID         uuid.UUID `db:"medication_id" json:"medication_id"`
	Dosage               string    `db:"dosage" json:"dosage"`
	Quantity             *string   `db:"quantity" json:"quantity,omitempty"`
	Form                 *string   `db:"form" json:"form,omitempty"`
	Duration             *string   `db:"duration" json:"duration,omitempty"`
	Frequency            *string   `db:"frequency" json:"frequency,omitempty"`
	Instructions         *string   `db:"instructions" json:"instructions,omitempty"`
}

type FormalPrescription struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConsultationID   uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	PrescriberID     uuid.UUID  `db:"prescriber_id" json:"prescriber_id"`
	Type             Type       `db:"type" json:"type"`
	DeterminedType   Type       `db:"determined_type" json:"determined_type"`
	IsValid          bool       `db:"is_valid" json:"is_valid"`
	ValidUntil       time.Time  `db:"valid_until" json:"valid_until"`
	SignatureHash    *string    `db:"signature_hash" json:"signature_hash,omitempty"`
	SignedAt         *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	SignedCredential *string    `db:"signed_credential" json:"signed_credential,omitempty"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	RevocationReason *string    `db:"revocation_reason" json:"revocation_reason,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	Items            []Item     `json:"items"`
}

// ActivePrescription is a row of the patient's current medication list.
type ActivePrescription struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationID         uuid.UUID  `db:"medication_id" json:"medication_id"`
	FormalPrescriptionID uuid.UUID  `db:"formal_prescription_id" json:"formal_prescription_id"`
	Dosage               string     `db:"dosage" json:"dosage"`
	Frequency            string     `db:"frequency" json:"frequency"`
	StartDate            time.Time  `db:"start_date" json:"start_date"`
	EndDate              *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsActive             bool       `db:"is_active" json:"is_active"`
}

type ItemInput struct {
	MedicationID uuid.UUID
	Dosage       string
	Quantity     *string
	Form         *string
	Duration     *string
	Frequency    *string
	Instructions *string
}

type CreateInput struct {
	ConsultationID uuid.UUID
	PatientID      uuid.UUID
	PrescriberID   uuid.UUID
	DeclaredType   Type
	Items          []ItemInput
}

func (in CreateInput) validate() []string {
	var errs []string
	if in.ConsultationID == uuid.Nil {
		errs = append(errs, "consultation_id is required")
	}
	if in.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if !in.DeclaredType.Valid() {
		errs = append(errs, fmt.Sprintf("type must be one of SIMPLES, CONTROLADA, ANTIMICROBIANA, got %q", in.DeclaredType))
	}
	if len(in.Items) == 0 {
		errs = append(errs, "at least one item is required")
	}
	for i, it := range in.Items {
		if it.MedicationID == uuid.Nil {
			errs = append(errs, fmt.Sprintf("items[%d].medication_id is required", i))
		}
		if strings.TrimSpace(it.Dosage) == "" {
			errs = append(errs, fmt.Sprintf("items[%d].dosage is required", i))
		}
	}
	ids := lo.Map(in.Items, func(it ItemInput, _ int) uuid.UUID { return it.MedicationID })
	for _, dup := range lo.FindDuplicates(lo.Without(ids, uuid.Nil)) {
		errs = append(errs, fmt.Sprintf("medication %s appears more than once", dup))
	}
	return errs
}

// indicationViolations checks every medication against the consultation's
// diagnoses. A medication passes when its indications share at least one
// code with them.
func indicationViolations(meds []*Medication, diagnoses []string) []string {
	var errs []string
	for _, m := range meds {
		if len(lo.Intersect(m.IndicationCodes, diagnoses)) == 0 {
			errs = append(errs, fmt.Sprintf("medication %s (indications: [%s]) is not indicated for consultation diagnoses [%s]",
				m.Name, strings.Join(m.IndicationCodes, ", "), strings.Join(diagnoses, ", ")))
		}
	}
	return errs
}

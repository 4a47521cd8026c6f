package prescription

import (
	"time"

	"github.com/google/uuid"
)

// ActiveUpsert makes one medication of a formal prescription the patient's
// active entry for that medication, unless an entry from a prescription
// started later is already active. Applying it again has no further effect.
type ActiveUpsert struct {
	PatientID            uuid.UUID
	MedicationID         uuid.UUID
	FormalPrescriptionID uuid.UUID
	Dosage               string
	Frequency            string
	StartDate            time.Time
	EndDate              time.Time
	// At ends any other active entry for the same patient and medication.
	At time.Time
}

// activeSyncPlan lists the upserts that bring the active list in line with
// fp.
func activeSyncPlan(fp *FormalPrescription, at time.Time) []ActiveUpsert {
	plan := make([]ActiveUpsert, 0, len(fp.Items))
	for _, it := range fp.Items {
		freq := DefaultFrequency
		if it.Frequency != nil && *it.Frequency != "" {
			freq = *it.Frequency
		}
		plan = append(plan, ActiveUpsert{
			PatientID:            fp.PatientID,
			MedicationID:         it.MedicationID,
			FormalPrescriptionID: fp.ID,
			Dosage:               it.Dosage,
			Frequency:            freq,
			StartDate:            fp.CreatedAt,
			EndDate:              fp.ValidUntil,
			At:                   at,
		})
	}
	return plan
}

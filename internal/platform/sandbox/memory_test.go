package sandbox

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/domain/identity"
)

func TestMemoryStores_AssignedDoctor(t *testing.T) {
	st := NewMemoryStores()
	ctx := context.Background()

	doctor := &identity.Clinician{Name: "Dra. Lima", Credential: "CRM-RJ 5521"}
	st.People.CreateClinician(ctx, doctor)
	assigned := &identity.Patient{Name: "Bruno", AssignedDoctorID: &doctor.ID}
	st.People.CreatePatient(ctx, assigned)
	unassigned := &identity.Patient{Name: "Rita"}
	st.People.CreatePatient(ctx, unassigned)

	if got := st.assignedDoctor(assigned.ID); got == nil || *got != doctor.ID {
		t.Errorf("expected doctor %s, got %v", doctor.ID, got)
	}
	if got := st.assignedDoctor(unassigned.ID); got != nil {
		t.Errorf("unassigned patient should have no doctor, got %v", got)
	}
	if got := st.assignedDoctor(uuid.New()); got != nil {
		t.Errorf("unknown patient should have no doctor, got %v", got)
	}
}

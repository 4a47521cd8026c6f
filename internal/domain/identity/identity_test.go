package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/telemon/telemon/internal/platform/apperr"
)

func TestPatient_IsAssignedTo(t *testing.T) {
	doctor := uuid.New()
	p := &Patient{ID: uuid.New(), AssignedDoctorID: &doctor}
	if !p.IsAssignedTo(doctor) {
		t.Error("expected patient to be assigned to doctor")
	}
	if p.IsAssignedTo(uuid.New()) {
		t.Error("expected other clinician not to be assigned")
	}
	if (&Patient{}).IsAssignedTo(doctor) {
		t.Error("unassigned patient has no doctor")
	}
}

func TestMemoryRepo_NotFound(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.GetPatient(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	_, err = repo.GetClinician(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestMemoryRepo_RoundTrip(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	c := &Clinician{Name: "Dr. Ana", Credential: "CRM-SP 123456"}
	if err := repo.CreateClinician(ctx, c); err != nil {
		t.Fatal(err)
	}
	p := &Patient{Name: "João", AssignedDoctorID: &c.ID}
	if err := repo.CreatePatient(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsAssignedTo(c.ID) {
		t.Error("expected stored assignment")
	}
	gc, _ := repo.GetClinician(ctx, c.ID)
	if gc.Credential != "CRM-SP 123456" {
		t.Errorf("unexpected credential %q", gc.Credential)
	}
}

package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/audit"
	"github.com/telemon/telemon/internal/platform/signing"
)

type Service struct {
	repo   Repository
	people identity.Repository
	audit  audit.Recorder
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, people identity.Repository, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, people: people, audit: rec, logger: logger, now: time.Now}
}

// CreateDraft opens a consultation owned by doctorID.
func (s *Service) CreateDraft(ctx context.Context, doctorID uuid.UUID, in DraftInput) (*Consultation, error) {
	if errs := in.validate(); len(errs) > 0 {
		return nil, apperr.Validation("invalid consultation", errs...)
	}
	if _, err := s.people.GetPatient(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.people.GetClinician(ctx, doctorID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &Consultation{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		DoctorID:  doctorID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateDraft replaces the editable fields of a draft. The patient cannot be
// changed.
func (s *Service) UpdateDraft(ctx context.Context, id, doctorID uuid.UUID, in DraftInput) (*Consultation, error) {
	c, err := s.loadOwned(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	in.PatientID = c.PatientID
	if errs := in.validate(); len(errs) > 0 {
		return nil, apperr.Validation("invalid consultation", errs...)
	}
	if c.Status != StatusDraft {
		return nil, apperr.InvalidState("consultation %s is %s and can no longer be edited", id, c.Status)
	}

	in.apply(c)
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateDraft(ctx, c); err != nil {
		if errors.Is(err, ErrNotDraft) {
			return nil, s.staleError(ctx, id, "edited")
		}
		return nil, err
	}
	return c, nil
}

// Get returns a consultation to its doctor or to the patient's assigned
// doctor.
func (s *Service) Get(ctx context.Context, id, clinicianID uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DoctorID == clinicianID {
		return c, nil
	}
	patient, err := s.people.GetPatient(ctx, c.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.IsAssignedTo(clinicianID) {
		return nil, apperr.Unauthorized("consultation %s is not visible to this clinician", id)
	}
	return c, nil
}

// Finalize validates and signs a draft with the clinician's credential.
// The status check and write are one conditional update; a concurrent
// finalize or cancel that wins makes this call fail with InvalidState.
func (s *Service) Finalize(ctx context.Context, id, clinicianID uuid.UUID) (*Consultation, error) {
	c, err := s.loadOwned(ctx, id, clinicianID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusFinalized) {
		return nil, apperr.InvalidState("consultation %s is %s; only DRAFT consultations can be finalized", id, c.Status)
	}
	if errs := finalizeViolations(c); len(errs) > 0 {
		return nil, apperr.Validation("consultation cannot be finalized", errs...)
	}

	clinician, err := s.people.GetClinician(ctx, clinicianID)
	if err != nil {
		return nil, err
	}
	signedAt := s.now().UTC().Truncate(signing.Precision)
	hash, err := ComputeSignature(c, signedAt, clinician.Credential)
	if err != nil {
		return nil, err
	}

	finalized, err := s.repo.Finalize(ctx, id, Signature{
		Hash:       hash,
		SignedAt:   signedAt,
		Credential: clinician.Credential,
		Revision:   c.Revision,
	})
	if errors.Is(err, ErrNotDraft) {
		return nil, s.staleError(ctx, id, "finalized")
	}
	if err != nil {
		return nil, fmt.Errorf("finalize consultation %s: %w", id, err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionConsultationFinalized,
		ActorID:    clinicianID.String(),
		EntityType: "consultation",
		EntityID:   id.String(),
		PatientID:  finalized.PatientID.String(),
		Details:    map[string]interface{}{"signature_hash": hash, "diagnosis_codes": finalized.DiagnosisCodes},
		Timestamp:  signedAt,
	})
	return finalized, nil
}

// Cancel closes a draft with a justification. Finalized consultations are
// signed records and cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id, clinicianID uuid.UUID, reason string) (*Consultation, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < MinReasonLength {
		return nil, apperr.Validation("invalid cancellation",
			fmt.Sprintf("reason must have at least %d characters (got %d)", MinReasonLength, n))
	}

	c, err := s.loadOwned(ctx, id, clinicianID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusCancelled {
		return nil, apperr.InvalidState("consultation %s is already cancelled", id)
	}
	if !CanTransition(c.Status, StatusCancelled) {
		return nil, apperr.InvalidState("consultation %s is %s and cannot be cancelled", id, c.Status)
	}

	at := s.now().UTC()
	cancelled, err := s.repo.Cancel(ctx, id, reason, at)
	if errors.Is(err, ErrNotDraft) {
		return nil, s.staleError(ctx, id, "cancelled")
	}
	if err != nil {
		return nil, fmt.Errorf("cancel consultation %s: %w", id, err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionConsultationCancelled,
		ActorID:    clinicianID.String(),
		EntityType: "consultation",
		EntityID:   id.String(),
		PatientID:  cancelled.PatientID.String(),
		Details:    map[string]interface{}{"reason": reason},
		Timestamp:  at,
	})
	return cancelled, nil
}

// VerifySignature recomputes the digest of a finalized consultation from its
// stored fields and compares it with the stored one.
func (s *Service) VerifySignature(ctx context.Context, id, clinicianID uuid.UUID) (*SignatureCheck, error) {
	c, err := s.Get(ctx, id, clinicianID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusFinalized || c.SignatureHash == nil || c.SignedAt == nil {
		return nil, apperr.InvalidState("consultation %s is not signed", id)
	}
	computed, err := ComputeSignature(c, *c.SignedAt, deref(c.SignedCredential))
	if err != nil {
		return nil, err
	}
	return &SignatureCheck{
		ConsultationID: id.String(),
		StoredHash:     *c.SignatureHash,
		ComputedHash:   computed,
		SignedAt:       *c.SignedAt,
		Valid:          signing.Matches(*c.SignatureHash, computed),
	}, nil
}

func (s *Service) loadOwned(ctx context.Context, id, doctorID uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DoctorID != doctorID {
		return nil, apperr.Unauthorized("consultation %s belongs to another clinician", id)
	}
	return c, nil
}

func (s *Service) staleError(ctx context.Context, id uuid.UUID, action string) error {
	latest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if latest.Status == StatusDraft {
		return apperr.InvalidState("consultation %s was edited concurrently and cannot be %s; reload and retry", id, action)
	}
	return apperr.InvalidState("consultation %s is %s and cannot be %s", id, latest.Status, action)
}

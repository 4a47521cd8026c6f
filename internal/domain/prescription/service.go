package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/consultation"
	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/audit"
	"github.com/telemon/telemon/internal/platform/db"
	"github.com/telemon/telemon/internal/platform/signing"
)

// ConsultationReader is the part of the consultation store prescriptions
// need.
type ConsultationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error)
}

type Service struct {
	repo          Repository
	meds          MedicationRepository
	consultations ConsultationReader
	people        identity.Repository
	tx            db.TxRunner
	audit         audit.Recorder
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, meds MedicationRepository, consultations ConsultationReader,
	people identity.Repository, tx db.TxRunner, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		meds:          meds,
		consultations: consultations,
		people:        people,
		tx:            tx,
		audit:         rec,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateFormalPrescription issues a signed prescription against a finalized
// consultation. Every medication must be indicated for at least one of the
// consultation's diagnoses. The prescription, its items, its signature and
// the active medication list are written in one transaction.
func (s *Service) CreateFormalPrescription(ctx context.Context, in CreateInput) (*FormalPrescription, error) {
	if errs := in.validate(); len(errs) > 0 {
		return nil, apperr.Validation("invalid prescription", errs...)
	}

	c, err := s.consultations.GetByID(ctx, in.ConsultationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.people.GetPatient(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if c.PatientID != in.PatientID {
		return nil, apperr.Validation("invalid prescription",
			fmt.Sprintf("consultation %s belongs to a different patient", c.ID))
	}
	if c.DoctorID != in.PrescriberID {
		return nil, apperr.Unauthorized("only the consultation's doctor can prescribe against it")
	}
	if c.Status != consultation.StatusFinalized {
		return nil, apperr.InvalidState("consultation %s is %s; prescriptions require a FINALIZED consultation", c.ID, c.Status)
	}

	meds := make([]*Medication, 0, len(in.Items))
	for _, it := range in.Items {
		m, err := s.meds.GetMedication(ctx, it.MedicationID)
		if err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	if errs := indicationViolations(meds, c.DiagnosisCodes); len(errs) > 0 {
		return nil, apperr.Validation("medication not indicated for diagnosis", errs...)
	}

	prescriber, err := s.people.GetClinician(ctx, in.PrescriberID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(signing.Precision)
	fp := &FormalPrescription{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		ConsultationID: in.ConsultationID,
		PrescriberID:   in.PrescriberID,
		Type:           in.DeclaredType,
		DeterminedType: DetermineType(meds),
		IsValid:        true,
		ValidUntil:     in.DeclaredType.ValidUntil(now),
		CreatedAt:      now,
	}
	for i, it := range in.Items {
		fp.Items = append(fp.Items, Item{
			Position:     i + 1,
			MedicationID: it.MedicationID,
			Dosage:       strings.TrimSpace(it.Dosage),
			Quantity:     it.Quantity,
			Form:         it.Form,
			Duration:     it.Duration,
			Frequency:    it.Frequency,
			Instructions: it.Instructions,
		})
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, fp); err != nil {
			return err
		}
		hash, err := ComputeSignature(fp, now, prescriber.Credential)
		if err != nil {
			return err
		}
		if err := s.repo.SetSignature(ctx, fp.ID, hash, now, prescriber.Credential); err != nil {
			return err
		}
		fp.SignatureHash = &hash
		fp.SignedAt = &now
		fp.SignedCredential = &prescriber.Credential
		_, err = s.applyPlan(ctx, activeSyncPlan(fp, now))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionPrescriptionCreated,
		ActorID:    in.PrescriberID.String(),
		EntityType: "prescription",
		EntityID:   fp.ID.String(),
		PatientID:  fp.PatientID.String(),
		Details:    map[string]interface{}{"type": string(fp.Type), "items": len(fp.Items), "signature_hash": *fp.SignatureHash},
		Timestamp:  now,
	})
	if fp.Type != fp.DeterminedType {
		s.logger.Warn().
			Str("prescription_id", fp.ID.String()).
			Str("declared_type", string(fp.Type)).
			Str("determined_type", string(fp.DeterminedType)).
			Msg("declared prescription type differs from medication classification")
		s.audit.Record(ctx, audit.Event{
			Action:     audit.ActionPrescriptionTypeDiffer,
			ActorID:    in.PrescriberID.String(),
			EntityType: "prescription",
			EntityID:   fp.ID.String(),
			PatientID:  fp.PatientID.String(),
			Details:    map[string]interface{}{"declared_type": string(fp.Type), "determined_type": string(fp.DeterminedType)},
			Timestamp:  now,
		})
	}
	return fp, nil
}

// applyPlan returns how many upserts took effect. Medications held by a
// newer prescription are left alone.
func (s *Service) applyPlan(ctx context.Context, plan []ActiveUpsert) (int, error) {
	applied := 0
	for _, u := range plan {
		ok, err := s.repo.ApplyActiveUpsert(ctx, u)
		if err != nil {
			return applied, err
		}
		if !ok {
			s.logger.Info().
				Str("prescription_id", u.FormalPrescriptionID.String()).
				Str("medication_id", u.MedicationID.String()).
				Msg("active medication held by a newer prescription; entry left unchanged")
			continue
		}
		applied++
	}
	return applied, nil
}

// RevokePrescription invalidates a prescription and ends the active list
// entries it produced. A second revocation fails and leaves revoked_at as it
// was.
func (s *Service) RevokePrescription(ctx context.Context, id, clinicianID uuid.UUID, reason string) (*FormalPrescription, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < MinReasonLength {
		return nil, apperr.Validation("invalid revocation",
			fmt.Sprintf("reason must have at least %d characters (got %d)", MinReasonLength, n))
	}

	fp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fp.PrescriberID != clinicianID {
		return nil, apperr.Unauthorized("prescription %s was issued by another clinician", id)
	}
	if !fp.IsValid {
		return nil, apperr.InvalidState("prescription %s is already revoked", id)
	}

	at := s.now().UTC()
	var revoked *FormalPrescription
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		revoked, err = s.repo.Revoke(ctx, id, reason, at)
		if err != nil {
			return err
		}
		_, err = s.repo.DeactivateActive(ctx, id, at)
		return err
	})
	if errors.Is(err, ErrAlreadyRevoked) {
		return nil, apperr.InvalidState("prescription %s is already revoked", id)
	}
	if err != nil {
		return nil, fmt.Errorf("revoke prescription %s: %w", id, err)
	}
	revoked.Items = fp.Items

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionPrescriptionRevoked,
		ActorID:    clinicianID.String(),
		EntityType: "prescription",
		EntityID:   id.String(),
		PatientID:  revoked.PatientID.String(),
		Details:    map[string]interface{}{"reason": reason},
		Timestamp:  at,
	})
	return revoked, nil
}

// Get returns a prescription to its prescriber or the patient's assigned
// doctor.
func (s *Service) Get(ctx context.Context, id, clinicianID uuid.UUID) (*FormalPrescription, error) {
	fp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fp.PrescriberID == clinicianID {
		return fp, nil
	}
	if err := s.checkAssigned(ctx, fp.PatientID, clinicianID); err != nil {
		return nil, err
	}
	return fp, nil
}

// ListActiveMedications returns the patient's current medication list.
func (s *Service) ListActiveMedications(ctx context.Context, patientID, clinicianID uuid.UUID) ([]*ActivePrescription, error) {
	if err := s.checkAssigned(ctx, patientID, clinicianID); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx, patientID)
}

// ResyncActiveList replays the active list writes for one prescription and
// returns how many entries were applied. Medications a newer prescription
// has taken over are skipped. A revoked or expired prescription only has its
// remaining entries deactivated.
func (s *Service) ResyncActiveList(ctx context.Context, id uuid.UUID) (int, error) {
	fp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	at := s.now().UTC()

	if !fp.IsValid || fp.ValidUntil.Before(at) {
		n, err := s.repo.DeactivateActive(ctx, id, at)
		if err != nil {
			return 0, err
		}
		s.logger.Info().Str("prescription_id", id.String()).Bool("revoked", !fp.IsValid).
			Int64("deactivated", n).Msg("prescription no longer in force; active entries ended")
		return 0, nil
	}

	var applied int
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.applyPlan(ctx, activeSyncPlan(fp, at))
		return err
	}); err != nil {
		s.logger.Error().Err(err).Str("prescription_id", id.String()).Msg("active medication resync failed")
		return 0, err
	}
	s.logger.Info().Str("prescription_id", id.String()).Int("entries", applied).Msg("active medication list resynced")
	return applied, nil
}

func (s *Service) checkAssigned(ctx context.Context, patientID, clinicianID uuid.UUID) error {
	patient, err := s.people.GetPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if !patient.IsAssignedTo(clinicianID) {
		return apperr.Unauthorized("patient %s is not assigned to this clinician", patientID)
	}
	return nil
}

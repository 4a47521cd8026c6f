package alert

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/audit"
	"github.com/telemon/telemon/internal/platform/realtime"
)

// DefaultSLAWindow is how long an alert may stay PENDING.
const DefaultSLAWindow = 24 * time.Hour

// Notifier pushes an event to a clinician without blocking.
type Notifier interface {
	Notify(clinicianID uuid.UUID, eventType string, payload interface{})
}

type Service struct {
	alerts    Repository
	people    identity.Repository
	notifier  Notifier
	audit     audit.Recorder
	logger    zerolog.Logger
	slaWindow time.Duration
	now       func() time.Time
}

func NewService(alerts Repository, people identity.Repository, notifier Notifier, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		alerts:    alerts,
		people:    people,
		notifier:  notifier,
		audit:     rec,
		logger:    logger,
		slaWindow: DefaultSLAWindow,
		now:       time.Now,
	}
}

// SetSLAWindow overrides the review deadline used by Stats.
func (s *Service) SetSLAWindow(d time.Duration) {
	if d > 0 {
		s.slaWindow = d
	}
}

// UpdateStatusInput is a clinician's request to move an alert forward.
type UpdateStatusInput struct {
	AlertID       uuid.UUID
	Status        Status
	Notes         *string
	ContactMethod *string
	ClinicianID   uuid.UUID
}

// UpdateStatus applies one lifecycle transition for the alert's assigned
// clinician. The write is conditional on the status read here, so of two
// concurrent requests for the same transition exactly one succeeds.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*Alert, error) {
	if !in.Status.Valid() {
		return nil, apperr.Validation("invalid alert status", string(in.Status))
	}

	current, patient, err := s.loadOwned(ctx, in.AlertID, in.ClinicianID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, in.Status) {
		return nil, apperr.InvalidState("%s", transitionMessage(current.Status, in.Status))
	}

	updated, err := s.alerts.ApplyTransition(ctx, Transition{
		AlertID:       in.AlertID,
		From:          current.Status,
		To:            in.Status,
		Notes:         in.Notes,
		ContactMethod: in.ContactMethod,
		At:            s.now().UTC(),
	})
	if errors.Is(err, ErrStaleStatus) {
		latest, gerr := s.alerts.GetByID(ctx, in.AlertID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperr.InvalidState("%s", transitionMessage(latest.Status, in.Status))
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionAlertStatusChanged,
		ActorID:    in.ClinicianID.String(),
		EntityType: "alert",
		EntityID:   updated.ID.String(),
		PatientID:  updated.PatientID.String(),
		Details:    map[string]interface{}{"from": string(current.Status), "to": string(updated.Status)},
		Timestamp:  updated.UpdatedAt,
	})
	if patient.AssignedDoctorID != nil {
		s.notifier.Notify(*patient.AssignedDoctorID, realtime.EventAlertUpdated, realtime.AlertUpdatedPayload{
			AlertID: updated.ID,
			Status:  string(updated.Status),
		})
	}
	return updated, nil
}

// Get returns one alert if it belongs to a patient assigned to clinicianID.
func (s *Service) Get(ctx context.Context, alertID, clinicianID uuid.UUID) (*Alert, error) {
	a, _, err := s.loadOwned(ctx, alertID, clinicianID)
	return a, err
}

// FindAll lists the clinician's alerts, newest first.
func (s *Service) FindAll(ctx context.Context, f Filter) ([]*Alert, int, error) {
	if f.ClinicianID == uuid.Nil {
		return nil, 0, apperr.Unauthorized("alert listing requires a clinician")
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, apperr.Validation("invalid alert status filter", string(*f.Status))
	}
	if f.Severity != nil && !validSeverities[*f.Severity] {
		return nil, 0, apperr.Validation("invalid alert severity filter", string(*f.Severity))
	}
	return s.alerts.ListForClinician(ctx, f)
}

// Stats aggregates the clinician's alerts. SLA breach is evaluated against
// the current time on every call.
func (s *Service) Stats(ctx context.Context, clinicianID uuid.UUID) (*Stats, error) {
	if clinicianID == uuid.Nil {
		return nil, apperr.Unauthorized("alert stats require a clinician")
	}
	return s.alerts.Stats(ctx, clinicianID, s.now().Add(-s.slaWindow))
}

func (s *Service) loadOwned(ctx context.Context, alertID, clinicianID uuid.UUID) (*Alert, *identity.Patient, error) {
	a, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, nil, err
	}
	patient, err := s.people.GetPatient(ctx, a.PatientID)
	if err != nil {
		return nil, nil, err
	}
	if !patient.IsAssignedTo(clinicianID) {
		return nil, nil, apperr.Unauthorized("alert %s does not belong to a patient assigned to you", alertID)
	}
	return a, patient, nil
}

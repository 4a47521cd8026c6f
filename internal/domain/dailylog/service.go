package dailylog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/domain/alert"
	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/domain/risk"
	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/audit"
	"github.com/telemon/telemon/internal/platform/db"
	"github.com/telemon/telemon/internal/platform/lock"
	"github.com/telemon/telemon/internal/platform/realtime"
)

type Service struct {
	reports   Repository
	alerts    alert.Repository
	people    identity.Repository
	tx        db.TxRunner
	evaluator *risk.Evaluator
	locker    lock.Locker
	notifier  alert.Notifier
	audit     audit.Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(reports Repository, alerts alert.Repository, people identity.Repository, tx db.TxRunner,
	notifier alert.Notifier, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		reports:   reports,
		alerts:    alerts,
		people:    people,
		tx:        tx,
		evaluator: risk.NewEvaluator(),
		locker:    lock.Noop{},
		notifier:  notifier,
		audit:     rec,
		logger:    logger,
		now:       time.Now,
	}
}

// SetLocker serializes submissions per patient. Without it, concurrent
// submissions for adjacent dates may each evaluate against history that
// does not yet include the other.
func (s *Service) SetLocker(l lock.Locker) {
	if l != nil {
		s.locker = l
	}
}

// Submission is the outcome of SubmitDailyReport. Alert is nil when no rule
// triggered.
type Submission struct {
	Report *DailyReport `json:"report"`
	Alert  *alert.Alert `json:"alert,omitempty"`
}

// SubmitDailyReport stores a patient's report for one calendar date,
// evaluates it against the patient's recent history and, when a rule
// triggers, raises a HIGH alert in the same transaction. The assigned
// clinician is notified after commit.
func (s *Service) SubmitDailyReport(ctx context.Context, in SubmitInput) (*Submission, error) {
	now := s.now().UTC()
	if errs := in.validate(dayOf(now)); len(errs) > 0 {
		return nil, apperr.Validation("invalid daily report", errs...)
	}

	patient, err := s.people.GetPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	date := dayOf(now)
	if in.Date != nil {
		date = dayOf(*in.Date)
	}
	report := &DailyReport{
		ID:                uuid.New(),
		PatientID:         in.PatientID,
		ReportDate:        date,
		MoodRating:        in.MoodRating,
		MoodLevel:         in.MoodLevel,
		AnxietyLevel:      in.AnxietyLevel,
		IrritabilityLevel: in.IrritabilityLevel,
		SleepHours:        in.SleepHours,
		SleepQuality:      in.SleepQuality,
		Notes:             in.Notes,
		SuicidalIdeation:  in.SuicidalIdeation,
		Tags:              deriveTags(in),
		CreatedAt:         now,
	}

	var raised *alert.Alert
	err = s.locker.WithPatientLock(ctx, in.PatientID, func(ctx context.Context) error {
		result, err := s.evaluate(ctx, report)
		if err != nil {
			return err
		}
		report.RiskFlag = result.Triggered
		if result.Triggered {
			raised = alert.NewTriggered(report.PatientID, report.ID, result.TriggerSource(), now)
		}

		return s.tx.InTx(ctx, func(ctx context.Context) error {
			if err := s.reports.Create(ctx, report); err != nil {
				return err
			}
			if raised != nil {
				return s.alerts.Create(ctx, raised)
			}
			return nil
		})
	})
	switch {
	case errors.Is(err, ErrDuplicateDate):
		return nil, apperr.InvalidState("a daily report for %s already exists", date.Format(DateLayout))
	case errors.Is(err, lock.ErrLockNotAcquired):
		return nil, apperr.InvalidState("another report for this patient is being processed")
	case err != nil:
		return nil, fmt.Errorf("submit daily report: %w", err)
	}

	s.afterCommit(ctx, patient, report, raised)
	return &Submission{Report: report, Alert: raised}, nil
}

func (s *Service) evaluate(ctx context.Context, report *DailyReport) (risk.Result, error) {
	current := risk.Report{Date: report.ReportDate, MoodLevel: report.MoodLevel, SuicidalIdeation: report.SuicidalIdeation}

	var prior []risk.Report
	if n := s.evaluator.Lookback(); n > 0 {
		history, err := s.reports.RecentWithMood(ctx, report.PatientID, report.ReportDate, n)
		if err != nil {
			return risk.Result{}, err
		}
		for _, h := range history {
			prior = append(prior, risk.Report{Date: h.ReportDate, MoodLevel: h.MoodLevel, SuicidalIdeation: h.SuicidalIdeation})
		}
	}
	return s.evaluator.Evaluate(current, prior), nil
}

func (s *Service) afterCommit(ctx context.Context, patient *identity.Patient, report *DailyReport, raised *alert.Alert) {
	if raised != nil {
		s.logger.Info().
			Str("alert_id", raised.ID.String()).
			Str("patient_id", patient.ID.String()).
			Str("trigger_source", raised.TriggerSource).
			Msg("risk alert raised")
		s.audit.Record(ctx, audit.Event{
			Action:     audit.ActionAlertCreated,
			ActorID:    patient.ID.String(),
			EntityType: "alert",
			EntityID:   raised.ID.String(),
			PatientID:  patient.ID.String(),
			Details:    map[string]interface{}{"trigger_source": raised.TriggerSource, "daily_report_id": report.ID.String()},
			Timestamp:  raised.CreatedAt,
		})
	}

	if patient.AssignedDoctorID == nil {
		return
	}
	doctor := *patient.AssignedDoctorID
	s.notifier.Notify(doctor, realtime.EventNewDailyLog, realtime.NewDailyLogPayload{
		LogID:       report.ID,
		PatientID:   patient.ID,
		PatientName: patient.Name,
		MoodRating:  report.MoodRating,
		MoodLevel:   report.MoodLevel,
		Date:        report.Date(),
		RiskFlag:    report.RiskFlag,
	})
	if raised != nil {
		s.notifier.Notify(doctor, realtime.EventNewAlert, realtime.NewAlertPayload{
			AlertID:     raised.ID,
			PatientID:   patient.ID,
			PatientName: patient.Name,
			Severity:    string(raised.Severity),
			Reasons:     risk.SplitTriggerSource(raised.TriggerSource),
		})
	}
}

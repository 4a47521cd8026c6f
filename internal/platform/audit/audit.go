// Package audit records compliance events for clinical record mutations.
// Recording is fire-and-forget: a sink failure is logged and never surfaces
// to the caller.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Action names recorded by the domain services.
const (
	ActionAlertCreated           = "alert.created"
	ActionAlertStatusChanged     = "alert.status_changed"
	ActionConsultationFinalized  = "consultation.finalized"
	ActionConsultationCancelled  = "consultation.cancelled"
	ActionPrescriptionCreated    = "prescription.created"
	ActionPrescriptionRevoked    = "prescription.revoked"
	ActionPrescriptionTypeDiffer = "prescription.type_mismatch"
)

// Event is one audit record.
type Event struct {
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id,omitempty"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	PatientID  string                 `json:"patient_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, e Event) {
	evt := s.logger.Info()
	if e.Action == ActionPrescriptionTypeDiffer {
		evt = s.logger.Warn()
	}
	evt.
		Str("action", e.Action).
		Str("actor_id", e.ActorID).
		Str("entity_type", e.EntityType).
		Str("entity_id", e.EntityID).
		Str("patient_id", e.PatientID).
		Fields(e.Details).
		Time("at", e.Timestamp).
		Msg("audit")
}

// Multi fans an event out to every recorder.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Event) {
	for _, r := range m {
		r.Record(ctx, e)
	}
}

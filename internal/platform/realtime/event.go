// Package realtime delivers clinician notifications over SSE and WebSocket.
// Delivery is at-most-once: events are queued without blocking the caller
// and dropped when a queue or client buffer is full.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to clinicians.
const (
	EventNewAlert     = "new_alert"
	EventAlertUpdated = "alert_updated"
	EventNewDailyLog  = "new_daily_log"
)

// Event is the envelope delivered to subscribers of Topic.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClinicianTopic is the topic a clinician's connections subscribe to.
func ClinicianTopic(clinicianID uuid.UUID) string {
	return "clinician:" + clinicianID.String()
}

type NewAlertPayload struct {
	AlertID     uuid.UUID `json:"alert_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Severity    string    `json:"severity"`
	Reasons     []string  `json:"reasons"`
}

type AlertUpdatedPayload struct {
	AlertID uuid.UUID `json:"alert_id"`
	Status  string    `json:"status"`
}

type NewDailyLogPayload struct {
	LogID       uuid.UUID `json:"log_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	MoodRating  int       `json:"mood_rating"`
	MoodLevel   *int      `json:"mood_level,omitempty"`
	Date        string    `json:"date"`
	RiskFlag    bool      `json:"risk_flag"`
}

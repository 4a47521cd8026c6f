package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusViewed        Status = "VIEWED"
	StatusContacted     Status = "CONTACTED"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

type Severity string

// SeverityHigh is assigned to every risk trigger.
const SeverityHigh Severity = "HIGH"

var validSeverities = map[Severity]bool{
	SeverityHigh: true,
}

// transitions is the complete alert lifecycle. Terminal states map to nothing.
var transitions = map[Status][]Status{
	StatusPending:       {StatusViewed},
	StatusViewed:        {StatusContacted},
	StatusContacted:     {StatusResolved, StatusFalsePositive},
	StatusResolved:      {},
	StatusFalsePositive: {},
}

// stampColumns records when an alert entered a state.
var stampColumns = map[Status]string{
	StatusViewed:        "viewed_at",
	StatusContacted:     "contacted_at",
	StatusResolved:      "resolved_at",
	StatusFalsePositive: "resolved_at",
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Allowed returns the states reachable from s in one step.
func (s Status) Allowed() []Status {
	return transitions[s]
}

// CanTransition reports whether from→to is in the lifecycle table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func formatStatuses(ss []Status) string {
	if len(ss) == 0 {
		return "none"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func transitionMessage(from, to Status) string {
	return fmt.Sprintf("invalid alert transition from %s to %s (allowed: %s)", from, to, formatStatuses(from.Allowed()))
}

type Alert struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DailyReportID   *uuid.UUID `db:"daily_report_id" json:"daily_report_id,omitempty"`
	Severity        Severity   `db:"severity" json:"severity"`
	TriggerSource   string     `db:"trigger_source" json:"trigger_source"`
	Status          Status     `db:"status" json:"status"`
	ResolutionNotes *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ContactMethod   *string    `db:"contact_method" json:"contact_method,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	ViewedAt        *time.Time `db:"viewed_at" json:"viewed_at,omitempty"`
	ContactedAt     *time.Time `db:"contacted_at" json:"contacted_at,omitempty"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// NewTriggered builds a PENDING high-severity alert for a risk trigger.
func NewTriggered(patientID, reportID uuid.UUID, triggerSource string, now time.Time) *Alert {
	return &Alert{
		ID:            uuid.New(),
		PatientID:     patientID,
		DailyReportID: &reportID,
		Severity:      SeverityHigh,
		TriggerSource: triggerSource,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Transition is a requested status change.
type Transition struct {
	AlertID       uuid.UUID
	From          Status
	To            Status
	Notes         *string
	ContactMethod *string
	At            time.Time
}

// Filter scopes FindAll. ClinicianID is mandatory.
type Filter struct {
	ClinicianID uuid.UUID
	Status      *Status
	Severity    *Severity
	Limit       int
	Offset      int
}

type Stats struct {
	Total       int              `json:"total"`
	ByStatus    map[Status]int   `json:"by_status"`
	BySeverity  map[Severity]int `json:"by_severity"`
	Pending     int              `json:"pending"`
	SLABreached int              `json:"sla_breached"`
}

func newStats() *Stats {
	return &Stats{ByStatus: map[Status]int{}, BySeverity: map[Severity]int{}}
}

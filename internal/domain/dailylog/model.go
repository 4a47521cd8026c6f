// Package dailylog accepts patient self-reports and raises risk alerts from
// them.
package dailylog

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DateLayout is the wire format of a report date.
const DateLayout = "2006-01-02"

// Derived tags.
const (
	TagDepressive       = "depressive"
	TagElevated         = "elevated"
	TagShortSleep       = "short_sleep"
	TagAnxiety          = "anxiety"
	TagIrritability     = "irritability"
	TagSuicidalIdeation = "suicidal_ideation"
)

// DailyReport is one patient self-assessment. It is never updated once
// stored.
type DailyReport struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	ReportDate        time.Time `db:"report_date" json:"report_date"`
	MoodRating        int       `db:"mood_rating" json:"mood_rating"`
	MoodLevel         *int      `db:"mood_level" json:"mood_level,omitempty"`
	AnxietyLevel      *int      `db:"anxiety_level" json:"anxiety_level,omitempty"`
	IrritabilityLevel *int      `db:"irritability_level" json:"irritability_level,omitempty"`
	SleepHours        *float64  `db:"sleep_hours" json:"sleep_hours,omitempty"`
	SleepQuality      *int      `db:"sleep_quality" json:"sleep_quality,omitempty"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	SuicidalIdeation  bool      `db:"suicidal_ideation_flag" json:"suicidal_ideation_flag"`
	RiskFlag          bool      `db:"risk_flag" json:"risk_flag"`
	Tags              []string  `db:"tags" json:"tags"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Date formats ReportDate as YYYY-MM-DD.
func (r *DailyReport) Date() string {
	return r.ReportDate.Format(DateLayout)
}

// SubmitInput is what a patient sends. There is no risk flag: it is always
// computed.
type SubmitInput struct {
	PatientID         uuid.UUID
	Date              *time.Time
	MoodRating        int
	MoodLevel         *int
	AnxietyLevel      *int
	IrritabilityLevel *int
	SleepHours        *float64
	SleepQuality      *int
	Notes             *string
	SuicidalIdeation  bool
}

// validate returns every violation found; today is the patient's current
// calendar date.
func (in SubmitInput) validate(today time.Time) []string {
	var errs []string
	if in.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if in.MoodRating < 1 || in.MoodRating > 5 {
		errs = append(errs, fmt.Sprintf("mood_rating must be between 1 and 5, got %d", in.MoodRating))
	}
	errs = append(errs, checkRange("mood_level", in.MoodLevel, -3, 3)...)
	errs = append(errs, checkRange("anxiety_level", in.AnxietyLevel, 0, 3)...)
	errs = append(errs, checkRange("irritability_level", in.IrritabilityLevel, 0, 3)...)
	errs = append(errs, checkRange("sleep_quality", in.SleepQuality, 1, 5)...)
	if in.SleepHours != nil && (*in.SleepHours < 0 || *in.SleepHours > 24) {
		errs = append(errs, fmt.Sprintf("sleep_hours must be between 0 and 24, got %g", *in.SleepHours))
	}
	if in.Date != nil && dayOf(*in.Date).After(today) {
		errs = append(errs, fmt.Sprintf("date %s is in the future", in.Date.Format(DateLayout)))
	}
	return errs
}

func checkRange(field string, v *int, min, max int) []string {
	if v == nil || (*v >= min && *v <= max) {
		return nil
	}
	return []string{fmt.Sprintf("%s must be between %d and %d, got %d", field, min, max, *v)}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// deriveTags summarizes a report for clinician views.
func deriveTags(in SubmitInput) []string {
	var tags []string
	if in.MoodLevel != nil {
		if *in.MoodLevel <= -2 {
			tags = append(tags, TagDepressive)
		}
		if *in.MoodLevel >= 2 {
			tags = append(tags, TagElevated)
		}
	}
	if in.SleepHours != nil && *in.SleepHours < 5 {
		tags = append(tags, TagShortSleep)
	}
	if in.AnxietyLevel != nil && *in.AnxietyLevel >= 2 {
		tags = append(tags, TagAnxiety)
	}
	if in.IrritabilityLevel != nil && *in.IrritabilityLevel >= 2 {
		tags = append(tags, TagIrritability)
	}
	if in.SuicidalIdeation {
		tags = append(tags, TagSuicidalIdeation)
	}
	tags = lo.Uniq(tags)
	sort.Strings(tags)
	return tags
}

// Package risk decides whether a new daily report must raise a clinical
// alert. Evaluation is a pure function of the report and the patient's prior
// reports; persistence and notification belong to the caller.
package risk

import (
	"sort"
	"strings"
	"time"
)

// Trigger reasons.
const (
	ReasonSuicidalIdeation  = "SUICIDAL_IDEATION"
	ReasonDepressionEpisode = "DEPRESSION_EPISODE"
)

// ReasonDelimiter joins reasons into an alert's trigger source.
const ReasonDelimiter = ","

// depressiveThreshold is the mood_level at or below which a day counts as
// depressive.
const depressiveThreshold = -2

// Report is the slice of a daily report the rules read.
type Report struct {
	Date             time.Time
	MoodLevel        *int
	SuicidalIdeation bool
}

// Rule is one independent trigger. Lookback is the number of prior reports
// the rule needs.
type Rule interface {
	Reason() string
	Lookback() int
	Triggered(current Report, prior []Report) bool
}

// Result is the outcome of an evaluation.
type Result struct {
	Triggered bool
	Reasons   []string
}

// TriggerSource joins the reasons in evaluation order.
func (r Result) TriggerSource() string {
	return strings.Join(r.Reasons, ReasonDelimiter)
}

// SplitTriggerSource reverses TriggerSource.
func SplitTriggerSource(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ReasonDelimiter)
}

// Evaluator applies an ordered rule list.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator returns an evaluator over rules; with none it uses
// DefaultRules.
func NewEvaluator(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// DefaultRules is the production rule set in reason order.
func DefaultRules() []Rule {
	return []Rule{
		suicidalIdeationRule{},
		depressionEpisodeRule{window: 2},
	}
}

// Lookback is the number of most recent prior reports with a mood level the
// caller must supply.
func (e *Evaluator) Lookback() int {
	n := 0
	for _, r := range e.rules {
		if r.Lookback() > n {
			n = r.Lookback()
		}
	}
	return n
}

// Evaluate runs every rule against current and prior. prior may arrive in any
// order and may contain reports on or after current's date; rules only see
// strictly earlier reports, newest first.
func (e *Evaluator) Evaluate(current Report, prior []Report) Result {
	history := earlierByDateDesc(current.Date, prior)

	var res Result
	for _, rule := range e.rules {
		if rule.Triggered(current, history) {
			res.Reasons = append(res.Reasons, rule.Reason())
		}
	}
	res.Triggered = len(res.Reasons) > 0
	return res
}

func earlierByDateDesc(date time.Time, prior []Report) []Report {
	day := truncateDay(date)
	out := make([]Report, 0, len(prior))
	for _, p := range prior {
		if truncateDay(p.Date).Before(day) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type suicidalIdeationRule struct{}

func (suicidalIdeationRule) Reason() string { return ReasonSuicidalIdeation }
func (suicidalIdeationRule) Lookback() int  { return 0 }

func (suicidalIdeationRule) Triggered(current Report, _ []Report) bool {
	return current.SuicidalIdeation
}

// depressionEpisodeRule fires when today and the window most recent prior
// days with a recorded mood are all depressive. Missing history never fires.
type depressionEpisodeRule struct {
	window int
}

func (depressionEpisodeRule) Reason() string  { return ReasonDepressionEpisode }
func (r depressionEpisodeRule) Lookback() int { return r.window }

func (r depressionEpisodeRule) Triggered(current Report, prior []Report) bool {
	if !isDepressive(current.MoodLevel) {
		return false
	}
	seen := 0
	for _, p := range prior {
		if p.MoodLevel == nil {
			continue
		}
		if !isDepressive(p.MoodLevel) {
			return false
		}
		seen++
		if seen == r.window {
			return true
		}
	}
	return false
}

func isDepressive(level *int) bool {
	return level != nil && *level <= depressiveThreshold
}

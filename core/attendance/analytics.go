package attendance

import (
	"math"
	"sort"
)

// Risk scoring over a student's attendance history.
// Every function here is a deterministic, side-effect-free function of its inputs:
// no I/O, no shared state, safe for concurrent use.
//
// Presence definitions: dashboards report an "attendance rate" that counts late
// arrivals as attended (CalculateAttendanceRate); risk scoring uses the stricter
// punctual-presence rate where only "present" counts (CalculateAttendancePercentage).
// The scoring pipeline and the trend slope both use the strict definition.

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// score floors for risk levels
const (
	mediumScoreFloor = 33.0
	highScoreFloor   = 66.0
)

type (
	RiskBreakdown struct {
		AttendancePercentage float64  `json:"attendancePercentage"`
		Absences             int      `json:"absences"`
		Lates                int      `json:"lates"`
		TotalSessions        int      `json:"totalSessions"`
		RecentTrendSlope     *float64 `json:"recentTrendSlope,omitempty"` // nil when fewer than 2 events are available
	}

	RiskAssessment struct {
		Level     RiskLevel     `json:"level"`
		Score     float64       `json:"score"` // 0-100 where higher = higher risk
		Breakdown RiskBreakdown `json:"breakdown"`
	}

	// Weights control the scoring mix. They should sum to <= 1; this is not validated.
	Weights struct {
		Absence  float64 `json:"absence"`
		Lateness float64 `json:"lateness"`
		Trend    float64 `json:"trend"`
	}

	AnalysisOptions struct {
		// TrendWindow is how many most recent events feed the trend slope.
		TrendWindow int `json:"trendWindow"`
		// Weights zero value means DefaultWeights.
		Weights Weights `json:"weights"`
	}
)

const DefaultTrendWindow = 10

var DefaultWeights = Weights{Absence: 0.6, Lateness: 0.2, Trend: 0.2}

func (o AnalysisOptions) withDefaults() AnalysisOptions {
	if o.TrendWindow <= 0 {
		o.TrendWindow = DefaultTrendWindow
	}
	if (o.Weights == Weights{}) {
		o.Weights = DefaultWeights
	}
	return o
}

func sortedByDate(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }

func clamp(f, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, f)) }

// CalculateAttendancePercentage returns the punctual-presence rate in [0,100]:
// the share of events with status "present", rounded to 2 decimals.
// An empty history yields 100 - absence of data is neutral-good so new or
// unrecorded students are not flagged.
func CalculateAttendancePercentage(events []Event) float64 {
	if len(events) == 0 {
		return 100
	}
	var present int
	for _, evt := range events {
		if evt.Status == StatusPresent {
			present++
		}
	}
	return round2(float64(present) / float64(len(events)) * 100)
}

// CalculateAttendanceRate is the display-layer attendance rate where late
// arrivals still count as attended. Not used by risk scoring.
func CalculateAttendanceRate(events []Event) float64 {
	if len(events) == 0 {
		return 100
	}
	var attended int
	for _, evt := range events {
		if evt.Status == StatusPresent || evt.Status == StatusLate {
			attended++
		}
	}
	return round2(float64(attended) / float64(len(events)) * 100)
}

// CalculateRecentTrendSlope fits an ordinary-least-squares line to the 0/1
// presence series of the most recent `window` events (sorted by date) and
// returns its slope rounded to 4 decimals. Negative means declining presence.
// ok is false when fewer than 2 events are available overall or in the window.
func CalculateRecentTrendSlope(events []Event, window int) (slope float64, ok bool) {
	if len(events) < 2 {
		return 0, false
	}
	sorted := sortedByDate(events)
	if len(sorted) > window {
		sorted = sorted[len(sorted)-window:]
	}
	n := len(sorted)
	if n < 2 {
		return 0, false
	}

	// x = 0..n-1, y = present(1) or not(0)
	var xSum, ySum float64
	ys := make([]float64, n)
	for i, evt := range sorted {
		if evt.Status == StatusPresent {
			ys[i] = 1
		}
		xSum += float64(i)
		ySum += ys[i]
	}
	xMean := xSum / float64(n)
	yMean := ySum / float64(n)

	var num, den float64
	for i := range ys {
		num += (float64(i) - xMean) * (ys[i] - yMean)
		den += (float64(i) - xMean) * (float64(i) - xMean)
	}
	if den == 0 {
		den = 1 // den > 0 whenever n >= 2
	}
	return round4(num / den), true
}

// AssessRisk converts a student's attendance history into a 0-100 risk score,
// a coarse level and a breakdown. Deterministic: the same history always
// yields the same assessment.
func AssessRisk(events []Event, opts ...AnalysisOptions) RiskAssessment {
	var o AnalysisOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	o = o.withDefaults()

	total := len(events)
	var absences, lates int
	for _, evt := range events {
		switch evt.Status {
		case StatusAbsent:
			absences++
		case StatusLate:
			lates++
		}
	}
	attendancePercentage := CalculateAttendancePercentage(events)
	trendSlope, hasTrend := CalculateRecentTrendSlope(events, o.TrendWindow)

	var absenceRate, latenessRate float64
	if total > 0 {
		absenceRate = float64(absences) / float64(total)
		latenessRate = float64(lates) / float64(total)
	}

	// Trend normalization: slope typically in [-1,1]; negative maps to risk, positive reduces risk.
	trendRisk := 0.5
	if hasTrend {
		trendRisk = clamp(-trendSlope+0.5, 0, 1)
	}

	score := 100 * (o.Weights.Absence*absenceRate +
		o.Weights.Lateness*latenessRate +
		o.Weights.Trend*trendRisk)

	// Attendance percentage modifier (reward high attendance, penalize low): +/- 25% at the extremes.
	score = score * (1 + (50-attendancePercentage)/200)

	score = clamp(round2(score), 0, 100)

	level := RiskLow
	switch {
	case score >= highScoreFloor:
		level = RiskHigh
	case score >= mediumScoreFloor:
		level = RiskMedium
	}

	breakdown := RiskBreakdown{
		AttendancePercentage: attendancePercentage,
		Absences:             absences,
		Lates:                lates,
		TotalSessions:        total,
	}
	if hasTrend {
		breakdown.RecentTrendSlope = &trendSlope
	}

	return RiskAssessment{Level: level, Score: score, Breakdown: breakdown}
}

type (
	// StudentAssessment pairs a student with their assessment for class-level reporting.
	StudentAssessment struct {
		StudentID  string         `json:"student_id"`
		Assessment RiskAssessment `json:"assessment"`
	}

	RiskSummary struct {
		Count       int                 `json:"count"`
		High        int                 `json:"high"`
		Medium      int                 `json:"medium"`
		Low         int                 `json:"low"`
		Assessments []StudentAssessment `json:"assessments"`
	}
)

// SummarizeRisk assesses many students at once and tallies levels.
// Assessments are ordered by student ID for stable output.
func SummarizeRisk(byStudent map[string][]Event, opts ...AnalysisOptions) RiskSummary {
	ids := make([]string, 0, len(byStudent))
	for id := range byStudent {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := RiskSummary{
		Count:       len(ids),
		Assessments: make([]StudentAssessment, 0, len(ids)),
	}
	for _, id := range ids {
		assessment := AssessRisk(byStudent[id], opts...)
		switch assessment.Level {
		case RiskHigh:
			summary.High++
		case RiskMedium:
			summary.Medium++
		default:
			summary.Low++
		}
		summary.Assessments = append(summary.Assessments, StudentAssessment{StudentID: id, Assessment: assessment})
	}
	return summary
}

package intervention

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// Pure trigger decision functions. Deterministic, side-effect free, safe for concurrent use.

// 1 week follow-up for high-risk students
const followUpDelta = 7 * 24 * time.Hour

// ShouldTrigger reports whether a student needs intervention based on their risk assessment.
// Any single signal is sufficient; thresholds are independent, not combined.
func ShouldTrigger(assessment attendance.RiskAssessment, thresholds ...Thresholds) bool {
	t := pick(thresholds)
	breakdown := assessment.Breakdown

	// high absence rate
	if breakdown.AttendancePercentage < (100 - t.AbsenceTrigger) {
		return true
	}

	// declining trend
	if breakdown.RecentTrendSlope != nil && *breakdown.RecentTrendSlope < t.DeclineRateThreshold {
		return true
	}

	// risk threshold
	return assessment.Score >= t.LowRiskThreshold
}

// DetermineType maps the score onto exactly one intervention type.
func DetermineType(assessment attendance.RiskAssessment, thresholds ...Thresholds) Type {
	t := pick(thresholds)

	if assessment.Score >= t.HighRiskThreshold {
		return TypeCounselorReferral // escalate to counselor
	}
	if assessment.Score >= t.MediumRiskThreshold {
		return TypeEmailAlert // alert teacher and admin
	}
	return TypeWarning
}

// Reason builds a human-readable explanation from the risk breakdown.
// Clause order is fixed; falls back to "Risk score elevated" when nothing specific applies.
func Reason(assessment attendance.RiskAssessment) string {
	breakdown := assessment.Breakdown
	reasons := make([]string, 0, 4)

	if breakdown.AttendancePercentage < 80 {
		reasons = append(reasons, fmt.Sprintf("Low attendance: %.1f%%", breakdown.AttendancePercentage))
	}
	if breakdown.Absences > 3 {
		reasons = append(reasons, fmt.Sprintf("Multiple absences: %d", breakdown.Absences))
	}
	if breakdown.Lates > 2 {
		reasons = append(reasons, fmt.Sprintf("Frequent lateness: %d times", breakdown.Lates))
	}
	if breakdown.RecentTrendSlope != nil && *breakdown.RecentTrendSlope < -0.3 {
		reasons = append(reasons, "Declining attendance trend")
	}

	if len(reasons) == 0 {
		return "Risk score elevated"
	}
	return strings.Join(reasons, "; ")
}

// NewTrigger composes the decision functions into a Trigger. No side effects beyond reading the clock.
func NewTrigger(studentID, studentName string, assessment attendance.RiskAssessment, thresholds Thresholds, ctxInfo ...TriggerContext) Trigger {
	trigger := Trigger{
		StudentID:   studentID,
		StudentName: studentName,
		Type:        DetermineType(assessment, thresholds),
		RiskScore:   assessment.Score,
		RiskLevel:   assessment.Level,
		Reason:      Reason(assessment),
		TriggeredAt: nowFunc().UTC(),
	}
	if len(ctxInfo) > 0 {
		trigger.Teacher = ctxInfo[0].Teacher
		trigger.Class = ctxInfo[0].Class
	}
	return trigger
}

// Intervention converts the trigger into a fresh Intervention record (ID left for the repository).
// Follow-up is required for high-risk students and counselor referrals; the follow-up
// date is only scheduled (1 week out) for high-risk students.
func (t Trigger) Intervention() Intervention {
	ivn := Intervention{
		StudentID:        t.StudentID,
		StudentName:      t.StudentName,
		Type:             t.Type,
		Status:           StatusTriggered,
		RiskScore:        t.RiskScore,
		RiskLevel:        t.RiskLevel,
		Reason:           t.Reason,
		FollowUpRequired: t.RiskLevel == attendance.RiskHigh || t.Type == TypeCounselorReferral,
		TriggeredAt:      t.TriggeredAt,
		CreatedAt:        t.TriggeredAt,
		UpdatedAt:        t.TriggeredAt,
	}
	if t.RiskLevel == attendance.RiskHigh {
		ivn.FollowUpDate = t.TriggeredAt.Add(followUpDelta)
	}
	return ivn
}

func pick(thresholds []Thresholds) Thresholds {
	if len(thresholds) > 0 {
		return thresholds[0].orDefault()
	}
	return DefaultThresholds
}

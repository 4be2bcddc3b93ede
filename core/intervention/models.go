package intervention

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

// Type classifies the action raised for an at-risk student.
type Type string

const (
	TypeWarning             Type = "warning"
	TypeEmailAlert          Type = "email-alert"
	TypeTeacherNotification Type = "teacher-notification"
	TypeCounselorReferral   Type = "counselor-referral"
	TypeParentContact       Type = "parent-contact"
)

// Valid returns true when the type is a supported value.
func (t Type) Valid() bool {
	switch t {
	case TypeWarning, TypeEmailAlert, TypeTeacherNotification, TypeCounselorReferral, TypeParentContact:
		return true
	default:
		return false
	}
}

// Status is the primary lifecycle state: triggered -> acknowledged -> in-progress -> resolved.
// Escalation is an orthogonal flag on the Intervention, not a fifth state.
type Status string

const (
	StatusTriggered    Status = "triggered"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in-progress"
	StatusResolved     Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTriggered, StatusAcknowledged, StatusInProgress, StatusResolved:
		return true
	default:
		return false
	}
}

var (
	ErrResolved          = errors.New("intervention is already resolved")
	ErrInvalidTransition = errors.New("invalid intervention status transition")
)

var nowFunc = time.Now // mockable

// Intervention is a tracked action item raised for a student crossing a risk threshold.
type Intervention struct {
	ID               string               `json:"id"`
	StudentID        string               `json:"student_id"`
	StudentName      string               `json:"student_name"`
	Type             Type                 `json:"type"`
	Status           Status               `json:"status"`
	RiskScore        float64              `json:"risk_score"`
	RiskLevel        attendance.RiskLevel `json:"risk_level"`
	Reason           string               `json:"reason"`
	Notes            string               `json:"notes,omitempty"`
	Escalated        bool                 `json:"escalated"`
	EscalationReason string               `json:"escalation_reason,omitempty"`
	TeacherID        string               `json:"teacher_id,omitempty"`
	CounselorID      string               `json:"counselor_id,omitempty"`
	FollowUpRequired bool                 `json:"follow_up_required"`
	FollowUpDate     time.Time            `json:"follow_up_date,omitempty"` // zero = none
	TriggeredAt      time.Time            `json:"triggered_at"`             // UTC
	AcknowledgedAt   time.Time            `json:"acknowledged_at,omitempty"`
	ResolvedAt       time.Time            `json:"resolved_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"` // UTC
	UpdatedAt        time.Time            `json:"updated_at"` // UTC
}

// Active reports whether the intervention still needs attention (any non-resolved status).
func (i *Intervention) Active() bool {
	return i.Status != StatusResolved
}

// Acknowledge moves a triggered intervention into the acknowledged state.
func (i *Intervention) Acknowledge() error {
	if i.Status == StatusResolved {
		return ErrResolved
	}
	if i.Status != StatusTriggered {
		return ErrInvalidTransition
	}
	now := nowFunc().UTC()
	i.Status = StatusAcknowledged
	i.AcknowledgedAt = now
	i.UpdatedAt = now
	return nil
}

// Start moves an acknowledged intervention into the in-progress state.
func (i *Intervention) Start() error {
	if i.Status == StatusResolved {
		return ErrResolved
	}
	if i.Status != StatusAcknowledged {
		return ErrInvalidTransition
	}
	i.Status = StatusInProgress
	i.UpdatedAt = nowFunc().UTC()
	return nil
}

// Resolve closes the intervention from any non-resolved state.
func (i *Intervention) Resolve() error {
	if i.Status == StatusResolved {
		return ErrResolved
	}
	now := nowFunc().UTC()
	i.Status = StatusResolved
	i.ResolvedAt = now
	i.UpdatedAt = now
	return nil
}

// Escalate flags the intervention without changing its primary status.
// Allowed from any non-resolved state.
func (i *Intervention) Escalate(reason string) error {
	if i.Status == StatusResolved {
		return ErrResolved
	}
	i.Escalated = true
	i.EscalationReason = reason
	i.UpdatedAt = nowFunc().UTC()
	return nil
}

// Thresholds configure when and how interventions trigger. Immutable; passed explicitly by callers.
type Thresholds struct {
	HighRiskThreshold    float64 `json:"highRiskThreshold"`    // triggers counselor referral
	MediumRiskThreshold  float64 `json:"mediumRiskThreshold"`  // triggers email alert
	LowRiskThreshold     float64 `json:"lowRiskThreshold"`     // triggers warning
	DeclineRateThreshold float64 `json:"declineRateThreshold"` // trend slope below this triggers
	AbsenceTrigger       float64 `json:"absenceTrigger"`       // percent; attendance below (100 - this) triggers
	// ConsecutiveAbsencesTrigger is reserved; current trigger logic does not consult it.
	ConsecutiveAbsencesTrigger int `json:"consecutiveAbsencesTrigger"`
}

var DefaultThresholds = Thresholds{
	HighRiskThreshold:          70,
	MediumRiskThreshold:        50,
	LowRiskThreshold:           30,
	DeclineRateThreshold:       -0.5,
	AbsenceTrigger:             40,
	ConsecutiveAbsencesTrigger: 3,
}

func (t Thresholds) orDefault() Thresholds {
	if t == (Thresholds{}) {
		return DefaultThresholds
	}
	return t
}

type (
	// Trigger is the pure decision output converted into an Intervention by the caller.
	Trigger struct {
		StudentID   string               `json:"student_id"`
		StudentName string               `json:"student_name"`
		Type        Type                 `json:"type"`
		RiskScore   float64              `json:"risk_score"`
		RiskLevel   attendance.RiskLevel `json:"risk_level"`
		Reason      string               `json:"reason"`
		TriggeredAt time.Time            `json:"triggered_at"`
		Teacher     string               `json:"teacher,omitempty"`
		Class       string               `json:"class,omitempty"`
	}

	// TriggerContext carries optional teacher/class info onto a Trigger.
	TriggerContext struct {
		Teacher string
		Class   string
	}
)

type QueryFilter struct {
	StudentID string `query:"student"`
	Status    Status `query:"status"`
	Type      Type   `query:"type"`
	Active    *bool  `query:"active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Status == "" && qf.Type == "" && qf.Active == nil
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
}

// UpdateIntervention defines the manually editable fields.
type UpdateIntervention struct {
	Notes       string `json:"notes"`
	CounselorID string `json:"counselor_id"`
	TeacherID   string `json:"teacher_id"`
}

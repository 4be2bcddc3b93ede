package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

// Status is the closed set of attendance outcomes for a session.
// There is deliberately no "excused" variant; invalid values must be rejected at the boundary.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// Event is a single attendance record: one per (student, course, date).
type Event struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	CourseID  string    `json:"course_id,omitempty" db:"course_id"` // empty when recorded outside any course
	Date      time.Time `json:"date" db:"date"`                     // calendar date; time-of-day is not significant
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewEvent contains information needed to record a new attendance Event.
type NewEvent struct {
	StudentID string    `json:"student_id" validate:"required"`
	CourseID  string    `json:"course_id"`
	Date      time.Time `json:"date" validate:"required"`
	Status    Status    `json:"status" validate:"required,oneof=present absent late"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

// BulkNewEvents records a full session sheet at once.
type BulkNewEvents struct {
	Events []NewEvent `json:"events" validate:"required,min=1,dive"`
}

func (b *BulkNewEvents) Validate(validate *validator.Validate) error {
	for i := range b.Events {
		b.Events[i].StudentID = core.CleanString(b.Events[i].StudentID)
		b.Events[i].CourseID = core.CleanString(b.Events[i].CourseID)
	}
	return validate.Struct(b)
}

type QueryFilter struct {
	StudentID string    `query:"student"`
	CourseID  string    `query:"course"`
	Status    Status    `query:"status"`
	DateFrom  time.Time `query:"date_from"`
	DateTo    time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.Status == "" && qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.CourseID = core.CleanString(qf.CourseID)
}

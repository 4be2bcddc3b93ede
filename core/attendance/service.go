package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound       = errors.New("attendance event not found")
	ErrDuplicateEvent = errors.New("an attendance event already exists for this student, course and date")
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event, exec ...core.DBExecutor) (Event, error)
		CreateEvents(ctx context.Context, evts []Event, exec ...core.DBExecutor) ([]Event, error)
		GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (Event, error)
		// FilterEvents applies AND operation on set QueryFilter fields.
		FilterEvents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Event, error)
		// QueryStudentEvents returns all events for a student, optionally scoped to one course (empty courseID = all courses).
		QueryStudentEvents(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) ([]Event, error)
		DeleteEventsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Record(ctx context.Context, ne NewEvent) (Event, error)
		BulkRecord(ctx context.Context, bulk BulkNewEvents) ([]Event, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error)
		StudentEvents(ctx context.Context, studentID, courseID string) ([]Event, error)
		AssessStudentRisk(ctx context.Context, studentID, courseID string, opts ...AnalysisOptions) (RiskAssessment, error)
		SummarizeCourseRisk(ctx context.Context, courseID string, opts ...AnalysisOptions) (RiskSummary, error)
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		db   core.DB
		repo Repository
		conf *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, conf *core.Config) *Service {
	return &Service{db: db, repo: repo, conf: conf}
}

// normalizeDate drops the time-of-day; events carry calendar-date semantics only.
func normalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (svc *Service) newEvent(ne NewEvent, now time.Time) Event {
	return Event{
		StudentID: ne.StudentID,
		CourseID:  ne.CourseID,
		Date:      normalizeDate(ne.Date),
		Status:    ne.Status,
		CreatedAt: now,
	}
}

func (svc *Service) Record(ctx context.Context, ne NewEvent) (Event, error) {
	evt, err := svc.repo.CreateEvent(ctx, svc.newEvent(ne, time.Now().UTC()))
	return evt, errors.Wrap(err, "creating attendance event")
}

func (svc *Service) BulkRecord(ctx context.Context, bulk BulkNewEvents) ([]Event, error) {
	now := time.Now().UTC()
	evts := make([]Event, 0, len(bulk.Events))
	for _, ne := range bulk.Events {
		evts = append(evts, svc.newEvent(ne, now))
	}
	evts, err := svc.repo.CreateEvents(ctx, evts)
	return evts, errors.Wrap(err, "creating attendance events")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error) {
	return svc.repo.FilterEvents(ctx, filter, ordering)
}

func (svc *Service) StudentEvents(ctx context.Context, studentID, courseID string) ([]Event, error) {
	return svc.repo.QueryStudentEvents(ctx, studentID, courseID)
}

// AssessStudentRisk fetches a student's history (optionally scoped to one course) and scores it.
func (svc *Service) AssessStudentRisk(ctx context.Context, studentID, courseID string, opts ...AnalysisOptions) (RiskAssessment, error) {
	events, err := svc.repo.QueryStudentEvents(ctx, studentID, courseID)
	if err != nil {
		return RiskAssessment{}, errors.Wrap(err, "querying student events")
	}
	return AssessRisk(events, opts...), nil
}

// SummarizeCourseRisk assesses every student with events in the given course.
func (svc *Service) SummarizeCourseRisk(ctx context.Context, courseID string, opts ...AnalysisOptions) (RiskSummary, error) {
	events, err := svc.repo.FilterEvents(ctx, &QueryFilter{CourseID: courseID}, nil)
	if err != nil {
		return RiskSummary{}, errors.Wrap(err, "querying course events")
	}
	byStudent := make(map[string][]Event)
	for _, evt := range events {
		byStudent[evt.StudentID] = append(byStudent[evt.StudentID], evt)
	}
	return SummarizeRisk(byStudent, opts...), nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteEventsByID(ctx, ids)
}

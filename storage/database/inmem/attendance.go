package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *eventTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.event}
}

func (repo *attendanceRepository) query() []attendance.Event {
	evts := make([]attendance.Event, 0, len(repo.db.table))
	for _, evt := range repo.db.table {
		evts = append(evts, *evt)
	}
	sort.Slice(evts, func(i, j int) bool { return evts[i].Date.Before(evts[j].Date) })
	return evts
}

func (repo *attendanceRepository) create(evt attendance.Event) (attendance.Event, error) {
	for _, existing := range repo.db.table {
		if existing.StudentID == evt.StudentID && existing.CourseID == evt.CourseID && existing.Date.Equal(evt.Date) {
			return attendance.Event{}, attendance.ErrDuplicateEvent
		}
	}
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *attendanceRepository) CreateEvent(_ context.Context, evt attendance.Event, _ ...core.DBExecutor) (attendance.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.create(evt)
}

// CreateEvents is all-or-nothing; a single duplicate fails the whole batch.
func (repo *attendanceRepository) CreateEvents(_ context.Context, evts []attendance.Event, _ ...core.DBExecutor) ([]attendance.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]attendance.Event, 0, len(evts))
	for _, evt := range evts {
		crt, err := repo.create(evt)
		if err != nil {
			for _, c := range created {
				delete(repo.db.table, c.ID)
			}
			return nil, err
		}
		created = append(created, crt)
	}
	return created, nil
}

func (repo *attendanceRepository) GetEventByID(_ context.Context, id string, _ ...core.DBExecutor) (attendance.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if evt, ok := repo.db.table[id]; ok {
		return *evt, nil
	}
	return attendance.Event{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) FilterEvents(_ context.Context, filter *attendance.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]attendance.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var evts []attendance.Event
	for _, evt := range repo.query() {
		if filter != nil && !matchEvent(evt, filter) {
			continue
		}
		evts = append(evts, evt)
	}
	return evts, nil
}

func matchEvent(evt attendance.Event, filter *attendance.QueryFilter) bool {
	if filter.StudentID != "" && evt.StudentID != filter.StudentID {
		return false
	}
	if filter.CourseID != "" && evt.CourseID != filter.CourseID {
		return false
	}
	if filter.Status != "" && evt.Status != filter.Status {
		return false
	}
	if !filter.DateFrom.IsZero() && evt.Date.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && evt.Date.After(filter.DateTo) {
		return false
	}
	return true
}

func (repo *attendanceRepository) QueryStudentEvents(_ context.Context, studentID, courseID string, _ ...core.DBExecutor) ([]attendance.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var evts []attendance.Event
	for _, evt := range repo.query() {
		if evt.StudentID != studentID {
			continue
		}
		if courseID != "" && evt.CourseID != courseID {
			continue
		}
		evts = append(evts, evt)
	}
	return evts, nil
}

func (repo *attendanceRepository) DeleteEventsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

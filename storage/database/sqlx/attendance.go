package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const eventCols = `id, student_id, COALESCE(course_id::text, ''), date, status, created_at`

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func scanEvent(row rowScanner) (attendance.Event, error) {
	var evt attendance.Event
	err := row.Scan(&evt.ID, &evt.StudentID, &evt.CourseID, &evt.Date, &evt.Status, &evt.CreatedAt)
	return evt, err
}

func (repo *attendanceRepository) insertEvent(ctx context.Context, ex dbExt, evt attendance.Event) (attendance.Event, error) {
	query := `INSERT INTO attendance_event (student_id, course_id, date, status, created_at)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5)
RETURNING ` + eventCols
	created, err := scanEvent(ex.QueryRowxContext(ctx, query, evt.StudentID, evt.CourseID, evt.Date, evt.Status, evt.CreatedAt))
	if err != nil {
		if isUniqueViolation(err, "attendance_event_student_course_date_uniq") {
			return attendance.Event{}, attendance.ErrDuplicateEvent
		}
		return attendance.Event{}, errors.Wrap(err, "inserting attendance event")
	}
	return created, nil
}

func (repo *attendanceRepository) CreateEvent(ctx context.Context, evt attendance.Event, exec ...core.DBExecutor) (attendance.Event, error) {
	return repo.insertEvent(ctx, ext(repo.db, exec), evt)
}

// CreateEvents inserts all events atomically; a single duplicate fails the whole batch.
func (repo *attendanceRepository) CreateEvents(ctx context.Context, evts []attendance.Event, exec ...core.DBExecutor) ([]attendance.Event, error) {
	if len(exec) > 0 {
		created := make([]attendance.Event, 0, len(evts))
		for _, evt := range evts {
			crt, err := repo.insertEvent(ctx, ext(repo.db, exec), evt)
			if err != nil {
				return nil, err
			}
			created = append(created, crt)
		}
		return created, nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	created := make([]attendance.Event, 0, len(evts))
	for _, evt := range evts {
		crt, err := repo.insertEvent(ctx, tx, evt)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		created = append(created, crt)
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return created, nil
}

func (repo *attendanceRepository) GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Event, error) {
	query := `SELECT ` + eventCols + ` FROM attendance_event WHERE id = $1`
	evt, err := scanEvent(ext(repo.db, exec).QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Event{}, attendance.ErrNotFound
		}
		return attendance.Event{}, errors.Wrap(err, "querying attendance event")
	}
	return evt, nil
}

func (repo *attendanceRepository) queryEvents(ctx context.Context, ex dbExt, query string, args ...interface{}) ([]attendance.Event, error) {
	rows, err := ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance events")
	}
	defer func() { _ = rows.Close() }()

	var evts []attendance.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning attendance event")
		}
		evts = append(evts, evt)
	}
	return evts, errors.Wrap(rows.Err(), "reading attendance events")
}

func (repo *attendanceRepository) FilterEvents(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Event, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.StudentID != "" {
			conds = append(conds, fmt.Sprintf("student_id = %s", arg(filter.StudentID)))
		}
		if filter.CourseID != "" {
			conds = append(conds, fmt.Sprintf("course_id = %s", arg(filter.CourseID)))
		}
		if filter.Status != "" {
			conds = append(conds, fmt.Sprintf("status = %s", arg(filter.Status)))
		}
		if !filter.DateFrom.IsZero() {
			conds = append(conds, fmt.Sprintf("date >= %s", arg(filter.DateFrom)))
		}
		if !filter.DateTo.IsZero() {
			conds = append(conds, fmt.Sprintf("date <= %s", arg(filter.DateTo)))
		}
	}

	query := `SELECT ` + eventCols + ` FROM attendance_event` + whereClause(conds) + orderClause(ordering, "date")
	return repo.queryEvents(ctx, ext(repo.db, exec), query, args...)
}

func (repo *attendanceRepository) QueryStudentEvents(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) ([]attendance.Event, error) {
	query := `SELECT ` + eventCols + ` FROM attendance_event
WHERE student_id = $1 AND (NULLIF($2, '') IS NULL OR course_id = NULLIF($2, '')::uuid)
ORDER BY date`
	return repo.queryEvents(ctx, ext(repo.db, exec), query, studentID, courseID)
}

func (repo *attendanceRepository) DeleteEventsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM attendance_event WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting attendance events")
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
)

const courseCols = `c.id, c.name, c.code, COALESCE(c.teacher_id::text, ''), c.created_at, c.updated_at`

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func scanCourse(row rowScanner) (course.Course, error) {
	var crs course.Course
	err := row.Scan(&crs.ID, &crs.Name, &crs.Code, &crs.TeacherID, &crs.CreatedAt, &crs.UpdatedAt)
	return crs, err
}

// loadStudentIDs fills StudentIDs for the given courses in one query.
func (repo *courseRepository) loadStudentIDs(ctx context.Context, ex dbExt, courses []course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	byID := make(map[string]*course.Course, len(courses))
	for i := range courses {
		ids = append(ids, courses[i].ID)
		byID[courses[i].ID] = &courses[i]
	}

	rows, err := ex.QueryxContext(ctx,
		`SELECT course_id, student_id FROM course_enrollment WHERE course_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids),
	)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var courseID, studentID string
		if err = rows.Scan(&courseID, &studentID); err != nil {
			return errors.Wrap(err, "scanning enrollment")
		}
		if crs, ok := byID[courseID]; ok {
			crs.StudentIDs = append(crs.StudentIDs, studentID)
		}
	}
	return errors.Wrap(rows.Err(), "reading enrollments")
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	query := `INSERT INTO course AS c (name, code, teacher_id) VALUES ($1, $2, NULLIF($3, '')::uuid) RETURNING ` + courseCols
	created, err := scanCourse(ext(repo.db, exec).QueryRowxContext(ctx, query, crs.Name, crs.Code, crs.TeacherID))
	if err != nil {
		if isUniqueViolation(err, "course_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return created, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	ex := ext(repo.db, exec)
	query := `SELECT ` + courseCols + ` FROM course c WHERE c.id = $1`
	crs, err := scanCourse(ex.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "querying course")
	}
	courses := []course.Course{crs}
	if err = repo.loadStudentIDs(ctx, ex, courses); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(c.name ILIKE %[1]s OR c.code ILIKE %[1]s)", p))
		}
		if filter.TeacherID != "" {
			conds = append(conds, fmt.Sprintf("c.teacher_id = %s", arg(filter.TeacherID)))
		}
		if filter.StudentID != "" {
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM course_enrollment ce WHERE ce.course_id = c.id AND ce.student_id = %s)",
				arg(filter.StudentID),
			))
		}
	}

	ex := ext(repo.db, exec)
	query := `SELECT ` + courseCols + ` FROM course c` + whereClause(conds) + orderClause(ordering, "c.created_at")
	rows, err := ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	defer func() { _ = rows.Close() }()

	var courses []course.Course
	for rows.Next() {
		crs, err := scanCourse(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning course")
		}
		courses = append(courses, crs)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading courses")
	}
	if err = repo.loadStudentIDs(ctx, ex, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	query := `UPDATE course AS c
SET name       = $1,
    code       = $2,
    teacher_id = NULLIF($3, '')::uuid,
    updated_at = NOW()
WHERE c.id = $4
RETURNING ` + courseCols
	ex := ext(repo.db, exec)
	updated, err := scanCourse(ex.QueryRowxContext(ctx, query, crs.Name, crs.Code, crs.TeacherID, crs.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		if isUniqueViolation(err, "course_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	courses := []course.Course{updated}
	if err = repo.loadStudentIDs(ctx, ex, courses); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo *courseRepository) EnrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx,
		`INSERT INTO course_enrollment (course_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		courseID, studentID,
	)
	return errors.Wrap(err, "enrolling student")
}

func (repo *courseRepository) UnenrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx,
		`DELETE FROM course_enrollment WHERE course_id = $1 AND student_id = $2`,
		courseID, studentID,
	)
	return errors.Wrap(err, "unenrolling student")
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM course WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting courses")
}

package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course}
}

// get copies the course with its current enrollments attached.
func (repo *courseRepository) get(id string) (course.Course, bool) {
	crs, ok := repo.db.table[id]
	if !ok {
		return course.Course{}, false
	}
	out := *crs
	out.StudentIDs = append([]string(nil), repo.db.enrollments[id]...)
	return out, true
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.table))
	for id := range repo.db.table {
		crs, _ := repo.get(id)
		courses = append(courses, crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if strings.EqualFold(existing.Code, crs.Code) {
			return course.Course{}, course.ErrCodeExists
		}
	}
	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	crs.CreatedAt = now
	crs.UpdatedAt = now

	students := crs.StudentIDs
	crs.StudentIDs = nil
	repo.db.table[crs.ID] = &crs
	repo.db.enrollments[crs.ID] = append([]string(nil), students...)

	created, _ := repo.get(crs.ID)
	return created, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.get(id); ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) FilterCourses(_ context.Context, filter *course.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.query() {
		if filter != nil && !matchCourse(crs, filter) {
			continue
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(crs.Name), s) && !strings.Contains(strings.ToLower(crs.Code), s) {
			return false
		}
	}
	if filter.TeacherID != "" && crs.TeacherID != filter.TeacherID {
		return false
	}
	if filter.StudentID != "" && !crs.Enrolled(filter.StudentID) {
		return false
	}
	return true
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	for id, existing := range repo.db.table {
		if id != crs.ID && strings.EqualFold(existing.Code, crs.Code) {
			return course.Course{}, course.ErrCodeExists
		}
	}
	orig.Name = crs.Name
	orig.Code = crs.Code
	orig.TeacherID = crs.TeacherID
	orig.UpdatedAt = time.Now().UTC()

	updated, _ := repo.get(crs.ID)
	return updated, nil
}

func (repo *courseRepository) EnrollStudent(_ context.Context, courseID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[courseID]; !ok {
		return course.ErrNotFound
	}
	for _, id := range repo.db.enrollments[courseID] {
		if id == studentID {
			return nil
		}
	}
	repo.db.enrollments[courseID] = append(repo.db.enrollments[courseID], studentID)
	return nil
}

func (repo *courseRepository) UnenrollStudent(_ context.Context, courseID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	students := repo.db.enrollments[courseID]
	for i, id := range students {
		if id == studentID {
			repo.db.enrollments[courseID] = append(students[:i], students[i+1:]...)
			return nil
		}
	}
	return nil
}

func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.db.enrollments, id)
	}
	return nil
}

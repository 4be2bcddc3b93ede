package course

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// FilterCourses applies AND operation on set QueryFilter fields.
		FilterCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// EnrollStudent is a no-op if the student is already enrolled.
		EnrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error
		UnenrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Enroll(ctx context.Context, courseID, studentID string) error
		Unenroll(ctx context.Context, courseID, studentID string) error
		Delete(ctx context.Context, ids []string) error
		AssignStudents(ctx context.Context, cfg AssignmentConfig) (AssignmentResult, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository, conf *core.Config) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		usrRepo: usrRepo,
		conf:    conf,
	}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	crs, err := svc.repo.CreateCourse(ctx, Course{
		Name:      nc.Name,
		Code:      nc.Code,
		TeacherID: nc.TeacherID,
	})
	return crs, errors.Wrap(err, "creating course")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.FilterCourses(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "finding course")
	}
	if uc.Name != "" {
		crs.Name = uc.Name
	}
	if uc.Code != "" {
		crs.Code = uc.Code
	}
	if uc.TeacherID != "" {
		crs.TeacherID = uc.TeacherID
	}
	crs, err = svc.repo.UpdateCourse(ctx, crs)
	return crs, errors.Wrap(err, "updating course")
}

func (svc *Service) Enroll(ctx context.Context, courseID, studentID string) error {
	return svc.repo.EnrollStudent(ctx, courseID, studentID)
}

func (svc *Service) Unenroll(ctx context.Context, courseID, studentID string) error {
	return svc.repo.UnenrollStudent(ctx, courseID, studentID)
}

func (svc *Service) Delete(ctx context.Context, ids []string) error {
	return svc.repo.DeleteCoursesByID(ctx, ids)
}

// AssignStudents distributes unenrolled active students across existing
// courses, balancing teacher workload per the configured strategy.
func (svc *Service) AssignStudents(ctx context.Context, cfg AssignmentConfig) (AssignmentResult, error) {
	courses, err := svc.repo.FilterCourses(ctx, nil, nil)
	if err != nil {
		return AssignmentResult{}, errors.Wrap(err, "querying courses")
	}

	isActive := true
	students, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles, IsActive: &isActive}, nil)
	if err != nil {
		return AssignmentResult{}, errors.Wrap(err, "querying students")
	}

	unassigned := unenrolledStudents(students, courses)
	res := DistributeStudents(unassigned, courses, cfg, func(studentID, courseID string) error {
		return svc.repo.EnrollStudent(ctx, courseID, studentID)
	})
	return res, nil
}

func unenrolledStudents(students []user.User, courses []Course) []user.User {
	enrolled := make(map[string]struct{})
	for _, crs := range courses {
		for _, id := range crs.StudentIDs {
			enrolled[id] = struct{}{}
		}
	}

	var out []user.User
	for _, student := range students {
		if _, ok := enrolled[student.ID]; !ok {
			out = append(out, student)
		}
	}
	return out
}

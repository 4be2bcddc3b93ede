package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, uname, email string) user.User {
	t.Helper()
	return CreateUser(t, repo, name, uname, email, "", user.StudentRoles, true)
}

// CreateEvents records one attendance event per status, on consecutive days
// counting back from today.
func CreateEvents(
	t *testing.T,
	repo attendance.Repository,
	studentID, courseID string,
	statuses ...attendance.Status,
) []attendance.Event {
	t.Helper()

	now := time.Now().UTC()
	events := make([]attendance.Event, 0, len(statuses))
	for i, status := range statuses {
		events = append(events, attendance.Event{
			StudentID: studentID,
			CourseID:  courseID,
			Date:      now.AddDate(0, 0, i-len(statuses)+1).Truncate(24 * time.Hour),
			Status:    status,
			CreatedAt: now,
		})
	}
	events, err := repo.CreateEvents(context.Background(), events)
	if err != nil {
		t.Fatalf("CreateEvents() failed: %v", err)
	}
	return events
}

func CreateCourse(t *testing.T, repo course.Repository, name, code, teacherID string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Name:      name,
		Code:      code,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

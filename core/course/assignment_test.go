package course

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/user"
)

func students(names ...string) []user.User {
	list := make([]user.User, 0, len(names))
	for _, name := range names {
		list = append(list, user.User{ID: "std-" + name, Name: name})
	}
	return list
}

func okEnroll(string, string) error { return nil }

func Test_TeacherLoadDistribution(t *testing.T) {
	courses := []Course{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1", "s2"}},
		{ID: "c2", TeacherID: "t1", StudentIDs: []string{"s3"}},
		{ID: "c3", TeacherID: "t2"},
		{ID: "c4", StudentIDs: []string{"s4"}}, // unstaffed courses are not counted
	}

	got := TeacherLoadDistribution(courses)
	if got["t1"] != 3 {
		t.Errorf("t1 load = %d, want 3", got["t1"])
	}
	if got["t2"] != 0 {
		t.Errorf("t2 load = %d, want 0", got["t2"])
	}
	if _, ok := got[""]; ok {
		t.Error("unstaffed course should not appear in distribution")
	}
}

func Test_DistributeStudents_leastLoaded(t *testing.T) {
	courses := []Course{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1", "s2"}},
		{ID: "c2", TeacherID: "t2"},
	}

	res := DistributeStudents(students("a", "b"), courses, AssignmentConfig{}, okEnroll)
	if !res.Success {
		t.Fatalf("result not successful: %+v", res)
	}
	if res.Created != 2 {
		t.Errorf("Created = %d, want 2", res.Created)
	}
	// both land on the emptier course
	for _, detail := range res.Details {
		if detail.CourseID != "c2" {
			t.Errorf("student %s assigned to %s, want c2", detail.StudentID, detail.CourseID)
		}
	}
	if res.Summary.Distribution["t2"] != 2 {
		t.Errorf("t2 load = %d, want 2", res.Summary.Distribution["t2"])
	}
}

func Test_DistributeStudents_roundRobin(t *testing.T) {
	courses := []Course{
		{ID: "c1", TeacherID: "t1"},
		{ID: "c2", TeacherID: "t2"},
	}

	res := DistributeStudents(students("a", "b", "c", "d"), courses, AssignmentConfig{Strategy: StrategyRoundRobin}, okEnroll)
	if res.Created != 4 {
		t.Fatalf("Created = %d, want 4", res.Created)
	}
	wantCourses := []string{"c1", "c2", "c1", "c2"}
	for i, detail := range res.Details {
		if detail.CourseID != wantCourses[i] {
			t.Errorf("Details[%d].CourseID = %s, want %s", i, detail.CourseID, wantCourses[i])
		}
	}
	if res.Summary.AvgStudentsPerTeacher != 2 {
		t.Errorf("AvgStudentsPerTeacher = %v, want 2", res.Summary.AvgStudentsPerTeacher)
	}
}

func Test_DistributeStudents_cap(t *testing.T) {
	t.Run("least-loaded spills over the cap", func(t *testing.T) {
		courses := []Course{
			{ID: "c1", TeacherID: "t1"},
			{ID: "c2", TeacherID: "t2"},
		}

		res := DistributeStudents(students("a", "b", "c", "d", "e"), courses, AssignmentConfig{MaxStudentsPerTeacher: 2}, okEnroll)
		if res.Created != 5 {
			t.Fatalf("Created = %d, want 5", res.Created)
		}
		// capacity exhausted after 4; the 5th falls back to the first course
		if res.Details[4].CourseID != "c1" {
			t.Errorf("overflow student assigned to %s, want c1", res.Details[4].CourseID)
		}
	})

	t.Run("round-robin respects cap while capacity remains", func(t *testing.T) {
		courses := []Course{
			{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1", "s2"}},
			{ID: "c2", TeacherID: "t2"},
		}

		res := DistributeStudents(students("a", "b"), courses, AssignmentConfig{MaxStudentsPerTeacher: 2, Strategy: StrategyRoundRobin}, okEnroll)
		for _, detail := range res.Details {
			if detail.CourseID != "c2" {
				t.Errorf("student %s assigned to %s, want c2", detail.StudentID, detail.CourseID)
			}
		}
	})
}

func Test_DistributeStudents_noCourses(t *testing.T) {
	res := DistributeStudents(students("a", "b"), nil, AssignmentConfig{}, okEnroll)
	if res.Success {
		t.Error("result should not be successful")
	}
	if res.Failed != 2 {
		t.Errorf("Failed = %d, want 2", res.Failed)
	}
	for _, detail := range res.Details {
		if detail.Reason != "no courses available" {
			t.Errorf("Reason = %q, want %q", detail.Reason, "no courses available")
		}
	}
}

func Test_DistributeStudents_enrollFailure(t *testing.T) {
	courses := []Course{{ID: "c1", TeacherID: "t1"}}
	enroll := func(studentID, courseID string) error {
		if studentID == "std-b" {
			return errors.New("enrollment closed")
		}
		return nil
	}

	res := DistributeStudents(students("a", "b", "c"), courses, AssignmentConfig{}, enroll)
	if res.Success {
		t.Error("result should not be successful")
	}
	if res.Created != 2 || res.Failed != 1 {
		t.Errorf("Created/Failed = %d/%d, want 2/1", res.Created, res.Failed)
	}
	if res.Details[1].Success || res.Details[1].Reason != "enrollment closed" {
		t.Errorf("failure not recorded: %+v", res.Details[1])
	}
	// failed enrollments do not count towards the load
	if res.Summary.Distribution["t1"] != 2 {
		t.Errorf("t1 load = %d, want 2", res.Summary.Distribution["t1"])
	}
}

func Test_studentName(t *testing.T) {
	if got := studentName(user.User{Name: "Jane", Email: "jane@test.cd"}); got != "Jane" {
		t.Errorf("studentName() = %q, want %q", got, "Jane")
	}
	if got := studentName(user.User{Email: "jane@test.cd"}); got != "jane@test.cd" {
		t.Errorf("studentName() = %q, want %q", got, "jane@test.cd")
	}
}

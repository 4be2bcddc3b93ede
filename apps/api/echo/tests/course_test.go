package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func Test_courseApi_create(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")

	newCourse := marchallObj(t, course.NewCourse{Name: "Algebra", Code: "MATH101", TeacherID: teacher.ID})

	tests := []httpTest{
		{
			name: "Auth required", body: newCourse,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", body: newCourse, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "name and code required", body: marchallObj(t, course.NewCourse{}), token: getToken(t, admin),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "create", body: newCourse, token: getToken(t, admin),
			wantCode: http.StatusCreated,
		},
		{
			name: "duplicate code", body: newCourse, token: getToken(t, admin),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: course.ErrCodeExists.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var crs course.Course
				if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
					t.Fatalf("unmarshalling course failed: %v", err)
				}
				if crs.Code != "math101" {
					t.Errorf("Code = %q, want %q", crs.Code, "math101")
				}
				if crs.ID == "" {
					t.Error("ID not set")
				}
			}
		})
	}
}

func Test_courseApi_queryAndRetrieve(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")

	crs1 := testutil.CreateCourse(t, crsRepo, "Algebra", "math101", teacher.ID)
	crs2 := testutil.CreateCourse(t, crsRepo, "Physics", "phys101", "")

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/courses",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Students denied", path: "/v1/courses", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Get all", path: "/v1/courses", token: getToken(t, teacher),
			wantData: marchallList(t, crs1, crs2),
		},
		{
			name: "Search", path: "/v1/courses?search=physics", token: getToken(t, teacher),
			wantData: marchallList(t, crs2),
		},
		{
			name: "Filter by teacher", path: "/v1/courses?teacher=" + teacher.ID, token: getToken(t, teacher),
			wantData: marchallList(t, crs1),
		},
		{
			name: "Retrieve", path: "/v1/courses/" + crs1.ID, token: getToken(t, teacher),
			wantData: marchallObj(t, crs1),
		},
		{
			name: "Retrieve unknown", path: "/v1/courses/21e0a777-b67b-4d01-89e4-dd47cae6c2f2", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_update(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra", "math101", "")

	tests := []httpTest{
		{
			name: "Admin required", path: "/v1/courses/" + crs.ID, token: getToken(t, teacher),
			body:     marchallObj(t, course.UpdateCourse{Name: "Algebra II"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Update unknown", path: "/v1/courses/21e0a777-b67b-4d01-89e4-dd47cae6c2f2", token: getToken(t, admin),
			body:     marchallObj(t, course.UpdateCourse{Name: "Algebra II"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Update", path: "/v1/courses/" + crs.ID, token: getToken(t, admin),
			body: marchallObj(t, course.UpdateCourse{Name: "Algebra II", TeacherID: teacher.ID}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("updated fields persist", func(t *testing.T) {
		got, err := crsRepo.GetCourseByID(nil, crs.ID)
		if err != nil {
			t.Fatalf("GetCourseByID() failed: %v", err)
		}
		if got.Name != "Algebra II" {
			t.Errorf("Name = %q, want %q", got.Name, "Algebra II")
		}
		if got.TeacherID != teacher.ID {
			t.Errorf("TeacherID = %q, want %q", got.TeacherID, teacher.ID)
		}
		if got.Code != "math101" {
			t.Errorf("Code = %q, want %q", got.Code, "math101")
		}
	})
}

func Test_courseApi_enrollment(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	crs := testutil.CreateCourse(t, crsRepo, "Algebra", "math101", teacher.ID)

	body := marchallObj(t, echoapi.EnrollmentRequest{StudentID: student.ID})
	token := getToken(t, teacher)

	t.Run("Students cannot enroll themselves", func(t *testing.T) {
		path := fmt.Sprintf("/v1/courses/%s/enroll", crs.ID)
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, student), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("enroll", func(t *testing.T) {
		path := fmt.Sprintf("/v1/courses/%s/enroll", crs.ID)
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		got, err := crsRepo.GetCourseByID(nil, crs.ID)
		if err != nil {
			t.Fatalf("GetCourseByID() failed: %v", err)
		}
		if !got.Enrolled(student.ID) {
			t.Error("student not enrolled")
		}
	})

	t.Run("unenroll", func(t *testing.T) {
		path := fmt.Sprintf("/v1/courses/%s/unenroll", crs.ID)
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		got, err := crsRepo.GetCourseByID(nil, crs.ID)
		if err != nil {
			t.Fatalf("GetCourseByID() failed: %v", err)
		}
		if got.Enrolled(student.ID) {
			t.Error("student still enrolled")
		}
	})

	t.Run("destroy", func(t *testing.T) {
		admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		if _, err := crsRepo.GetCourseByID(nil, crs.ID); err != course.ErrNotFound {
			t.Errorf("err = %v, want %v", err, course.ErrNotFound)
		}
	})
}

func Test_courseApi_assignStudents(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	t1 := testutil.CreateUser(t, usrRepo, "Teacher One", "t1", "t1@test.cd", "", user.TeacherRoles, true)
	t2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "t2", "t2@test.cd", "", user.TeacherRoles, true)
	crs1 := testutil.CreateCourse(t, crsRepo, "Algebra", "math101", t1.ID)
	crs2 := testutil.CreateCourse(t, crsRepo, "Physics", "phys101", t2.ID)

	for i := 0; i < 4; i++ {
		testutil.CreateStudent(t, usrRepo,
			fmt.Sprintf("Student %d", i), fmt.Sprintf("std%d", i), fmt.Sprintf("std%d@test.cd", i))
	}

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/assign-students", getToken(t, t1),
			marchallObj(t, course.AssignmentConfig{}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("assign", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/assign-students", getToken(t, admin),
			marchallObj(t, course.AssignmentConfig{Strategy: course.StrategyRoundRobin}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res course.AssignmentResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling result failed: %v", err)
		}
		if !res.Success {
			t.Error("Success = false")
		}
		if res.Created != 4 {
			t.Errorf("Created = %d, want 4", res.Created)
		}
		if got := res.Summary.Distribution[t1.ID] + res.Summary.Distribution[t2.ID]; got != 4 {
			t.Errorf("distributed %d students, want 4", got)
		}

		for _, id := range []string{crs1.ID, crs2.ID} {
			crs, err := crsRepo.GetCourseByID(nil, id)
			if err != nil {
				t.Fatalf("GetCourseByID() failed: %v", err)
			}
			if len(crs.StudentIDs) != 2 {
				t.Errorf("course %s has %d students, want 2", crs.Code, len(crs.StudentIDs))
			}
		}
	})

	t.Run("rerun assigns nothing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/assign-students", getToken(t, admin),
			marchallObj(t, course.AssignmentConfig{}))
		app.ServeHTTP(rec, req)
		var res course.AssignmentResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling result failed: %v", err)
		}
		if res.Created != 0 {
			t.Errorf("Created = %d, want 0", res.Created)
		}
	})
}

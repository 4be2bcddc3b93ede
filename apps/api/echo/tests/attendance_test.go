package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func Test_attendanceApi_record(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")

	date := time.Date(2021, 4, 12, 0, 0, 0, 0, time.UTC)
	newEvent := func(status attendance.Status) []byte {
		return marchallObj(t, attendance.NewEvent{StudentID: student.ID, Date: date, Status: status})
	}

	tests := []httpTest{
		{
			name: "Auth required", body: newEvent(attendance.StatusPresent),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Students cannot record", body: newEvent(attendance.StatusPresent), token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid status", body: newEvent("excused"), token: getToken(t, teacher),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "record", body: newEvent(attendance.StatusLate), token: getToken(t, teacher),
			wantCode: http.StatusCreated,
		},
		{
			name: "duplicate date", body: newEvent(attendance.StatusPresent), token: getToken(t, teacher),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: attendance.ErrDuplicateEvent.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("recorded event is normalized", func(t *testing.T) {
		evts, err := attRepo.QueryStudentEvents(nil, student.ID, "")
		if err != nil {
			t.Fatalf("QueryStudentEvents() failed: %v", err)
		}
		if len(evts) != 1 {
			t.Fatalf("got %d events, want 1", len(evts))
		}
		if !evts[0].Date.Equal(date) {
			t.Errorf("Date = %v, want %v", evts[0].Date, date)
		}
		if evts[0].Status != attendance.StatusLate {
			t.Errorf("Status = %v, want %v", evts[0].Status, attendance.StatusLate)
		}
	})
}

func Test_attendanceApi_bulkRecord(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	std1 := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	std2 := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")

	date := time.Date(2021, 4, 12, 0, 0, 0, 0, time.UTC)
	body := marchallObj(t, attendance.BulkNewEvents{Events: []attendance.NewEvent{
		{StudentID: std1.ID, Date: date, Status: attendance.StatusPresent},
		{StudentID: std2.ID, Date: date, Status: attendance.StatusAbsent},
	}})

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/bulk", getToken(t, teacher), body)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var evts []attendance.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &evts); err != nil {
		t.Fatalf("unmarshalling events failed: %v", err)
	}
	if len(evts) != 2 {
		t.Errorf("got %d events, want 2", len(evts))
	}

	t.Run("bulk sheet is all-or-nothing", func(t *testing.T) {
		body := marchallObj(t, attendance.BulkNewEvents{Events: []attendance.NewEvent{
			{StudentID: std1.ID, Date: date.AddDate(0, 0, 1), Status: attendance.StatusPresent},
			{StudentID: std2.ID, Date: date, Status: attendance.StatusLate}, // duplicate
		}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/bulk", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("code = %v, want %v", rec.Code, http.StatusConflict)
		}
		evts, err := attRepo.QueryStudentEvents(nil, std1.ID, "")
		if err != nil {
			t.Fatalf("QueryStudentEvents() failed: %v", err)
		}
		if len(evts) != 1 {
			t.Errorf("got %d events, want 1", len(evts))
		}
	})
}

func Test_attendanceApi_studentEndpoints(t *testing.T) {
	app := setup(t)

	counselor := testutil.CreateUser(t, usrRepo, "Counselor", "couns", "couns@test.cd", "", user.CounselorRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	other := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")

	events := testutil.CreateEvents(t, attRepo, student.ID, "",
		attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	eventsPath := fmt.Sprintf("/v1/students/%s/attendance", student.ID)
	riskPath := fmt.Sprintf("/v1/students/%s/risk", student.ID)

	tests := []httpTest{
		{
			name: "Auth required", path: eventsPath,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "other students denied", path: eventsPath, token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student reads own events", path: eventsPath, token: getToken(t, student),
			wantData: marchallList(t, events[0], events[1], events[2], events[3]),
		},
		{
			name: "staff reads any student", path: eventsPath, token: getToken(t, counselor),
			wantData: marchallList(t, events[0], events[1], events[2], events[3]),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("student risk", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, riskPath, getToken(t, student))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var assessment attendance.RiskAssessment
		if err := json.Unmarshal(rec.Body.Bytes(), &assessment); err != nil {
			t.Fatalf("unmarshalling assessment failed: %v", err)
		}
		if assessment.Breakdown.TotalSessions != 4 {
			t.Errorf("TotalSessions = %d, want 4", assessment.Breakdown.TotalSessions)
		}
		if assessment.Breakdown.Absences != 3 {
			t.Errorf("Absences = %d, want 3", assessment.Breakdown.Absences)
		}
		if assessment.Breakdown.AttendancePercentage != 25 {
			t.Errorf("AttendancePercentage = %v, want 25", assessment.Breakdown.AttendancePercentage)
		}
	})

	t.Run("unrecorded student is neutral", func(t *testing.T) {
		path := fmt.Sprintf("/v1/students/%s/risk", other.ID)
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, other))
		app.ServeHTTP(rec, req)

		var assessment attendance.RiskAssessment
		if err := json.Unmarshal(rec.Body.Bytes(), &assessment); err != nil {
			t.Fatalf("unmarshalling assessment failed: %v", err)
		}
		if assessment.Breakdown.AttendancePercentage != 100 {
			t.Errorf("AttendancePercentage = %v, want 100", assessment.Breakdown.AttendancePercentage)
		}
		if assessment.Level != attendance.RiskLow {
			t.Errorf("Level = %v, want %v", assessment.Level, attendance.RiskLow)
		}
	})
}

func Test_attendanceApi_courseRiskSummary(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	std1 := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	std2 := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")
	crs := testutil.CreateCourse(t, crsRepo, "Algebra", "MATH101", teacher.ID)

	testutil.CreateEvents(t, attRepo, std1.ID, crs.ID,
		attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)
	testutil.CreateEvents(t, attRepo, std2.ID, crs.ID,
		attendance.StatusPresent, attendance.StatusPresent, attendance.StatusPresent)

	req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/courses/%s/risk-summary", crs.ID), getToken(t, teacher))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var summary attendance.RiskSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshalling summary failed: %v", err)
	}
	if summary.Count != 2 {
		t.Errorf("Count = %d, want 2", summary.Count)
	}
	if summary.High != 1 || summary.Low != 1 {
		t.Errorf("High/Low = %d/%d, want 1/1", summary.High, summary.Low)
	}
}

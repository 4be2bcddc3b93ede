package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/intervention"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func createIntervention(t *testing.T, studentID, name string, status intervention.Status) intervention.Intervention {
	t.Helper()

	ivn, err := ivnRepo.CreateIntervention(nil, intervention.Intervention{
		StudentID:   studentID,
		StudentName: name,
		Type:        intervention.TypeEmailAlert,
		Status:      status,
		RiskScore:   55,
		RiskLevel:   attendance.RiskMedium,
		Reason:      "Low attendance: 55.0%",
		TriggeredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateIntervention() failed: %v", err)
	}
	return ivn
}

func Test_interventionApi_query(t *testing.T) {
	app := setup(t)

	counselor := testutil.CreateUser(t, usrRepo, "Counselor", "couns", "couns@test.cd", "", user.CounselorRoles, true)
	std1 := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	std2 := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")

	ivn1 := createIntervention(t, std1.ID, std1.Name, intervention.StatusTriggered)
	ivn2 := createIntervention(t, std2.ID, std2.Name, intervention.StatusResolved)

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/interventions",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Students denied", path: "/v1/interventions", token: getToken(t, std1),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Get all", path: "/v1/interventions", token: getToken(t, counselor),
			wantData: marchallList(t, ivn1, ivn2),
		},
		{
			name: "Filter by status", path: "/v1/interventions?status=resolved", token: getToken(t, counselor),
			wantData: marchallList(t, ivn2),
		},
		{
			name: "Filter by student", path: "/v1/interventions?student=" + std1.ID, token: getToken(t, counselor),
			wantData: marchallList(t, ivn1),
		},
		{
			name: "Filter active", path: "/v1/interventions?active=true", token: getToken(t, counselor),
			wantData: marchallList(t, ivn1),
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

func Test_interventionApi_retrieve(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	ivn := createIntervention(t, student.ID, student.Name, intervention.StatusTriggered)

	tests := []httpTest{
		{
			name: "Not found", path: "/v1/interventions/e8ea300c-1ff5-4168-91a9-7e2d326aa4c2", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Get", path: "/v1/interventions/" + ivn.ID, token: getToken(t, teacher),
			wantData: marchallObj(t, ivn),
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

func Test_interventionApi_lifecycle(t *testing.T) {
	app := setup(t)

	counselor := testutil.CreateUser(t, usrRepo, "Counselor", "couns", "couns@test.cd", "", user.CounselorRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	ivn := createIntervention(t, student.ID, student.Name, intervention.StatusTriggered)
	token := getToken(t, counselor)

	do := func(t *testing.T, action string, body ...[]byte) (*intervention.Intervention, int, string) {
		t.Helper()
		path := fmt.Sprintf("/v1/interventions/%s/%s", ivn.ID, action)
		req, rec := newAuthRequest(http.MethodPost, path, token, body...)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return nil, rec.Code, rec.Body.String()
		}
		res := new(intervention.Intervention)
		if err := json.Unmarshal(rec.Body.Bytes(), res); err != nil {
			t.Fatalf("unmarshalling intervention failed: %v", err)
		}
		return res, rec.Code, rec.Body.String()
	}

	t.Run("start before acknowledge conflicts", func(t *testing.T) {
		_, code, body := do(t, "start")
		if code != http.StatusConflict {
			t.Errorf("code = %v, want %v; body %s", code, http.StatusConflict, body)
		}
	})

	t.Run("acknowledge", func(t *testing.T) {
		res, code, body := do(t, "acknowledge")
		if code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", code, http.StatusOK, body)
		}
		if res.Status != intervention.StatusAcknowledged {
			t.Errorf("Status = %v, want %v", res.Status, intervention.StatusAcknowledged)
		}
		if res.AcknowledgedAt.IsZero() {
			t.Error("AcknowledgedAt not set")
		}
	})

	t.Run("start", func(t *testing.T) {
		res, code, body := do(t, "start")
		if code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", code, http.StatusOK, body)
		}
		if res.Status != intervention.StatusInProgress {
			t.Errorf("Status = %v, want %v", res.Status, intervention.StatusInProgress)
		}
	})

	t.Run("escalate requires a reason", func(t *testing.T) {
		_, code, _ := do(t, "escalate", marchallObj(t, echoapi.EscalateRequest{}))
		if code != http.StatusBadRequest {
			t.Errorf("code = %v, want %v", code, http.StatusBadRequest)
		}
	})

	t.Run("escalate", func(t *testing.T) {
		res, code, body := do(t, "escalate", marchallObj(t, echoapi.EscalateRequest{Reason: "no response from parents"}))
		if code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", code, http.StatusOK, body)
		}
		if !res.Escalated {
			t.Error("Escalated not set")
		}
		if res.EscalationReason != "no response from parents" {
			t.Errorf("EscalationReason = %q", res.EscalationReason)
		}
		if res.Status != intervention.StatusInProgress {
			t.Errorf("Status = %v, want %v", res.Status, intervention.StatusInProgress)
		}
	})

	t.Run("update", func(t *testing.T) {
		data := marchallObj(t, intervention.UpdateIntervention{Notes: "met with the student", CounselorID: counselor.ID})
		req, rec := newAuthRequest(http.MethodPut, "/v1/interventions/"+ivn.ID, token, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		res := new(intervention.Intervention)
		if err := json.Unmarshal(rec.Body.Bytes(), res); err != nil {
			t.Fatalf("unmarshalling intervention failed: %v", err)
		}
		if res.Notes != "met with the student" {
			t.Errorf("Notes = %q", res.Notes)
		}
		if res.CounselorID != counselor.ID {
			t.Errorf("CounselorID = %q, want %q", res.CounselorID, counselor.ID)
		}
	})

	t.Run("resolve", func(t *testing.T) {
		res, code, body := do(t, "resolve")
		if code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", code, http.StatusOK, body)
		}
		if res.Status != intervention.StatusResolved {
			t.Errorf("Status = %v, want %v", res.Status, intervention.StatusResolved)
		}
		if res.ResolvedAt.IsZero() {
			t.Error("ResolvedAt not set")
		}
	})

	t.Run("resolved is terminal", func(t *testing.T) {
		for _, action := range []string{"acknowledge", "start", "resolve"} {
			_, code, _ := do(t, action)
			if code != http.StatusConflict {
				t.Errorf("%s: code = %v, want %v", action, code, http.StatusConflict)
			}
		}
	})
}

func Test_interventionApi_scan(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")

	testutil.CreateEvents(t, attRepo, student.ID, "",
		attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent,
		attendance.StatusAbsent, attendance.StatusAbsent)

	t.Run("Admin required", func(t *testing.T) {
		for _, usr := range []user.User{teacher, student} {
			req, rec := newAuthRequest(http.MethodPost, "/v1/interventions/scan", getToken(t, usr))
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Errorf("%s: code = %v, want %v", usr.Username, rec.Code, http.StatusForbidden)
			}
		}
	})

	t.Run("scan triggers at-risk students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/interventions/scan", getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res intervention.ScanResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling scan result failed: %v", err)
		}
		if res.Scanned != 1 {
			t.Errorf("Scanned = %d, want 1", res.Scanned)
		}
		if res.Triggered != 1 {
			t.Errorf("Triggered = %d, want 1", res.Triggered)
		}

		ivns, err := ivnRepo.QueryStudentInterventions(nil, student.ID)
		if err != nil {
			t.Fatalf("QueryStudentInterventions() failed: %v", err)
		}
		if len(ivns) != 1 {
			t.Fatalf("got %d interventions, want 1", len(ivns))
		}
		if ivns[0].Type != intervention.TypeCounselorReferral {
			t.Errorf("Type = %v, want %v", ivns[0].Type, intervention.TypeCounselorReferral)
		}
	})
}

func Test_interventionApi_health(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	std1 := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	std2 := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")

	createIntervention(t, std1.ID, std1.Name, intervention.StatusTriggered)
	createIntervention(t, std2.ID, std2.Name, intervention.StatusResolved)

	req, rec := newAuthRequest(http.MethodGet, "/v1/interventions/health", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var hs intervention.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &hs); err != nil {
		t.Fatalf("unmarshalling health status failed: %v", err)
	}
	if hs.ActiveInterventions != 1 {
		t.Errorf("ActiveInterventions = %d, want 1", hs.ActiveInterventions)
	}
	if hs.ResolvedInterventions != 1 {
		t.Errorf("ResolvedInterventions = %d, want 1", hs.ResolvedInterventions)
	}
}

func Test_interventionApi_studentInterventions(t *testing.T) {
	app := setup(t)

	counselor := testutil.CreateUser(t, usrRepo, "Counselor", "couns", "couns@test.cd", "", user.CounselorRoles, true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "hero", "hero@test.cd")
	other := testutil.CreateStudent(t, usrRepo, "Other", "other", "other@test.cd")
	ivn := createIntervention(t, student.ID, student.Name, intervention.StatusTriggered)

	path := fmt.Sprintf("/v1/students/%s/interventions", student.ID)

	tests := []httpTest{
		{
			name: "Auth required", path: path,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "other students denied", path: path, token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student reads own interventions", path: path, token: getToken(t, student),
			wantData: marchallList(t, ivn),
		},
		{
			name: "staff reads any student", path: path, token: getToken(t, counselor),
			wantData: marchallList(t, ivn),
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

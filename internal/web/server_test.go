package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facemodel"
	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()

	reg := registry.New(filepath.Join(dir, "StudentDetails.csv"), nil)
	led := ledger.New(filepath.Join(dir, "Attendance"), nil)
	creds := credentials.New(filepath.Join(dir, "admin_info.txt"), dir, "test_salt", nil)
	if _, err := creds.BootstrapAdmin(); err != nil {
		t.Fatal(err)
	}
	model := facemodel.NewHNSW()
	pipeline := enrollment.New(reg, creds, model,
		func() (camera.Device, error) { return nil, faults.Device("no camera in tests") },
		camera.FullFrame,
		filepath.Join(dir, "samples"), filepath.Join(dir, "model.bin"), nil)

	srv := NewServer(reg, led, creds, pipeline, model, "127.0.0.1", 0, "test_secret", nil)
	return srv, reg, led
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"username": credentials.AdminUsername,
		"password": credentials.TempAdminPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["token"] == "" {
		t.Fatal("empty token")
	}
	return resp["token"]
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"username": credentials.AdminUsername,
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/login", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/api/status", "/api/students", "/api/attendance"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, rec.Code)
		}
		rec = doJSON(t, srv, http.MethodGet, path, "garbage-token", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestStatus(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	token := login(t, srv)

	if err := reg.Append(registry.Student{ID: "CS2021001", Name: "Ada Lovelace"},
		registry.Abort, registry.Abort); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Registered int  `json:"registered"`
		Trained    bool `json:"trained"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Registered != 1 {
		t.Errorf("registered = %d, want 1", resp.Registered)
	}
	if resp.Trained {
		t.Error("trained = true for a fresh model")
	}
}

func TestListStudents(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	token := login(t, srv)

	if err := reg.Append(registry.Student{ID: "CS2021001", Name: "Ada Lovelace", Department: "CS"},
		registry.Abort, registry.Abort); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/students", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Students []studentResponse `json:"students"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Students) != 1 || resp.Students[0].ID != "CS2021001" || resp.Students[0].Serial != 1 {
		t.Errorf("unexpected students %+v", resp.Students)
	}
}

func TestRemoveStudent(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	token := login(t, srv)

	if err := reg.Append(registry.Student{ID: "CS2021001", Name: "Ada Lovelace"},
		registry.Abort, registry.Abort); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodDelete, "/api/students/CS2021001", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if student, _ := reg.GetByID("CS2021001"); student != nil {
		t.Error("student still registered after delete")
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/students/CS2021001", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestQueryAndDeleteAttendance(t *testing.T) {
	srv, _, led := newTestServer(t)
	token := login(t, srv)

	for _, r := range []ledger.Record{
		{ID: "CS2021001", Name: "Ada Lovelace", Date: "15-01-2024", Time: "09:00:00 AM"},
		{ID: "CS2021002", Name: "Grace Hopper", Date: "15-01-2024", Time: "09:01:00 AM"},
	} {
		if err := led.Append(r); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/attendance?student=CS2021001", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d", rec.Code)
	}
	var resp struct {
		Records []attendanceResponse `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 || resp.Records[0].ID != "CS2021001" {
		t.Errorf("unexpected records %+v", resp.Records)
	}

	// Row-level delete.
	rec = doJSON(t, srv, http.MethodDelete, "/api/attendance/15-01-2024", token,
		deleteAttendanceRequest{IDs: []string{"CS2021001"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete rows status = %d: %s", rec.Code, rec.Body.String())
	}
	records, _ := led.QueryAll(ledger.Filter{})
	if len(records) != 1 || records[0].ID != "CS2021002" {
		t.Errorf("unexpected survivors %+v", records)
	}

	// Whole-file delete.
	rec = doJSON(t, srv, http.MethodDelete, "/api/attendance/15-01-2024", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete file status = %d: %s", rec.Code, rec.Body.String())
	}

	// Deleting a date with no file is a 404.
	rec = doJSON(t, srv, http.MethodDelete, "/api/attendance/15-01-2024", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing date delete status = %d, want 404", rec.Code)
	}
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	forged, _, err := issueToken(credentials.AdminUsername, "admin", "other_secret")
	if err != nil {
		t.Fatal(err)
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/status", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFault maps the error taxonomy onto HTTP statuses.
func (s *Server) writeFault(w http.ResponseWriter, err error) {
	switch {
	case faults.IsValidation(err), faults.IsDuplicate(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case faults.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ok, err := s.credentials.VerifyAdmin(req.Username, req.Password)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, exp, err := issueToken(req.Username, "admin", s.secret)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"expires_at": exp.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.registry.Count()
	if err != nil {
		s.writeFault(w, err)
		return
	}
	dates, err := s.ledger.Dates()
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registered": count,
		"trained":    s.model.Trained(),
		"dates":      dates,
	})
}

type studentResponse struct {
	Serial     int    `json:"serial"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Branch     string `json:"branch"`
	Program    string `json:"program"`
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.registry.Load()
	if err != nil {
		s.writeFault(w, err)
		return
	}
	out := make([]studentResponse, 0, len(students))
	for _, st := range students {
		out = append(out, studentResponse{
			Serial:     st.Serial,
			ID:         st.ID,
			Name:       st.Name,
			Department: st.Department,
			Branch:     st.Branch,
			Program:    st.Program,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": out})
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.enrollment.Remove(id)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

type attendanceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Branch     string `json:"branch"`
	Program    string `json:"program"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

func (s *Server) handleQueryAttendance(w http.ResponseWriter, r *http.Request) {
	filter := ledger.Filter{
		StudentID: r.URL.Query().Get("student"),
		Date:      r.URL.Query().Get("date"),
	}
	records, err := s.ledger.QueryAll(filter)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	out := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, attendanceResponse{
			ID:         rec.ID,
			Name:       rec.Name,
			Department: rec.Department,
			Branch:     rec.Branch,
			Program:    rec.Program,
			Date:       rec.Date,
			Time:       rec.Time,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

type deleteAttendanceRequest struct {
	IDs []string `json:"ids"`
}

// handleDeleteAttendance removes rows for the given ids from one date
// file, or the whole file when no ids are given.
func (s *Server) handleDeleteAttendance(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	var req deleteAttendanceRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if len(req.IDs) == 0 {
		if err := s.ledger.DeleteDate(date); err != nil {
			s.writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "deleted_file": true})
		return
	}

	removed, err := s.ledger.DeleteWhere(date, req.IDs)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "removed": removed})
}

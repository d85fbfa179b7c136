package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
)

func (s *Server) badBody(w http.ResponseWriter, r *http.Request, err error) {
	log.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("invalid request body")
	writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
}

// dateParam returns the {date} URL parameter, writing a 400 when it is not a
// YYYY-MM-DD calendar date.
func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if !domain.ValidDate(date) {
		writeError(w, r, http.StatusBadRequest, rosterservice.ErrInvalidDate.Error())
		return "", false
	}
	return date, true
}

// ListSchedules handles GET /api/schedules
func (s *Server) ListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := s.Roster.Schedules.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetSchedule handles GET /api/schedules/{date}
func (s *Server) GetSchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	doc, err := s.Roster.Schedules.Get(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SaveSchedule handles POST /api/schedules/{date}
func (s *Server) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	var in rosterservice.ScheduleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	doc, err := s.Roster.Schedules.Save(r.Context(), date, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Str("date", date).
		Int("employees", len(doc.Employees)).
		Bool("replaceAll", in.ReplaceAll).
		Msg("schedule saved")
	writeJSON(w, http.StatusOK, doc)
}

// ListAssignments handles GET /api/assignments
func (s *Server) ListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := s.Roster.Assignments.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAssignments handles GET /api/assignments/{date}
func (s *Server) GetAssignments(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	doc, err := s.Roster.Assignments.Get(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SaveAssignments handles POST /api/assignments/{date}
func (s *Server) SaveAssignments(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	var in rosterservice.AssignmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	doc, err := s.Roster.Assignments.Save(r.Context(), date, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteAssignments handles DELETE /api/assignments/{date}
func (s *Server) DeleteAssignments(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := s.Roster.Assignments.Delete(r.Context(), date); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AssignEmployee handles POST /api/assignments/{date}/assign
func (s *Server) AssignEmployee(w http.ResponseWriter, r *http.Request) {
	s.modifySlot(w, r, s.Roster.Assignments.Assign)
}

// RemoveEmployee handles POST /api/assignments/{date}/remove
func (s *Server) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	s.modifySlot(w, r, s.Roster.Assignments.Remove)
}

type slotFunc func(ctx context.Context, date string, in rosterservice.SlotInput) (*domain.AssignmentDoc, error)

func (s *Server) modifySlot(w http.ResponseWriter, r *http.Request, fn slotFunc) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	var in rosterservice.SlotInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	doc, err := fn(r.Context(), date, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListDayParts handles GET /api/dayparts
func (s *Server) ListDayParts(w http.ResponseWriter, r *http.Request) {
	list, err := s.Roster.DayParts.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetDayPart handles GET /api/dayparts/{date}
func (s *Server) GetDayPart(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	doc, err := s.Roster.DayParts.Get(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SaveDayPart handles POST /api/dayparts/{date}
func (s *Server) SaveDayPart(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	var in struct {
		DayPart domain.DayPart `json:"dayPart"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	doc, err := s.Roster.DayParts.Save(r.Context(), date, in.DayPart)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateBackup handles POST /api/backup
func (s *Server) CreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := s.Roster.Backup.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// ListBackups handles GET /api/backups
func (s *Server) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.Roster.Backup.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ImportLocalData handles POST /api/import-local-data. The body is the
// client's cached key/value map, optionally wrapped as {"data": {...}}.
func (s *Server) ImportLocalData(w http.ResponseWriter, r *http.Request) {
	var entries map[string]json.RawMessage
	if err := decodeJSON(w, r, &entries); err != nil {
		s.badBody(w, r, err)
		return
	}
	if inner, ok := entries["data"]; ok && len(entries) == 1 {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &wrapped); err == nil && wrapped != nil {
			entries = wrapped
		}
	}
	if entries == nil {
		writeError(w, r, http.StatusBadRequest, "Expected an object of cached entries")
		return
	}

	res, err := s.Roster.Importer.ImportLocal(r.Context(), entries)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"imported": res.Imported,
		"skipped":  res.Skipped,
	})
}

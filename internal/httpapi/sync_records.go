package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// pushResp is the response body for sync record pushes
type pushResp struct {
	Success         bool  `json:"success"`
	Updated         bool  `json:"updated"`
	Timestamp       int64 `json:"timestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// bulkSyncReq is the body of POST /api/sync: either a single keyed record or
// the legacy bulk import.
type bulkSyncReq struct {
	Key      string        `json:"key"`
	SyncData *syncx.Record `json:"syncData"`
	rosterservice.BulkImport
}

// bulkSyncResp is the response body for the legacy bulk form
type bulkSyncResp struct {
	Success bool `json:"success"`
	*rosterservice.ImportResult
}

// GetSyncRecord handles GET /api/sync/{key}
func (s *Server) GetSyncRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rec, err := s.Registry.Get(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "No data found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListSyncKeys handles GET /api/sync
func (s *Server) ListSyncKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Registry.Keys(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// PostSyncRecord handles POST /api/sync/{key}
func (s *Server) PostSyncRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var rec syncx.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid sync record body")
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	s.offer(w, r, key, rec)
}

// PostSync handles POST /api/sync
func (s *Server) PostSync(w http.ResponseWriter, r *http.Request) {
	var req bulkSyncReq
	if err := decodeJSON(w, r, &req); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid sync body")
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	switch {
	case req.Key != "":
		if req.SyncData == nil {
			writeError(w, r, http.StatusBadRequest, "syncData is required with key")
			return
		}
		s.offer(w, r, req.Key, *req.SyncData)
	case !req.BulkImport.Empty():
		// Legacy path: domain documents are overwritten as-is, without comparing
		// timestamps. Each one is then offered as a sync record stamped with the
		// server clock, like any other domain save.
		res, err := s.Roster.Importer.ImportBulk(r.Context(), req.BulkImport)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bulkSyncResp{Success: true, ImportResult: res})
	default:
		writeError(w, r, http.StatusBadRequest, "Expected {key, syncData} or {schedules, assignments, dayparts}")
	}
}

func (s *Server) offer(w http.ResponseWriter, r *http.Request, key string, rec syncx.Record) {
	if err := rec.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if rec.DeviceID == "" {
		rec.DeviceID = GetDeviceID(r.Context())
	}

	res, err := s.Registry.Offer(r.Context(), key, rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logger := log.Ctx(r.Context())
	if res.Updated {
		logger.Debug().Str("key", key).Int64("timestamp", rec.Timestamp).Msg("sync record accepted")
		change := notify.Change{Key: key, Action: notify.ActionSynced, Source: rec.DeviceID, At: time.Now().UTC()}
		if k, ok := syncx.ParseKey(key); ok {
			change.Category = k.Category
			change.Date = k.Date
		}
		s.publisher().Publish(change)
	} else {
		logger.Info().
			Str("key", key).
			Int64("offered", rec.Timestamp).
			Int64("stored", res.Timestamp).
			Msg("stale sync record rejected")
	}

	writeJSON(w, http.StatusOK, pushResp{
		Success:         true,
		Updated:         res.Updated,
		Timestamp:       res.Timestamp,
		ServerTimestamp: res.ServerTimestamp,
	})
}

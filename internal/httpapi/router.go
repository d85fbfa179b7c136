// Package httpapi serves the scheduling REST API and the sync endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/auth"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// maxBodyBytes bounds request bodies; rosters for a single day are small.
const maxBodyBytes = 5 << 20

// Server holds dependencies for HTTP handlers.
type Server struct {
	Roster   *rosterservice.Service
	Registry *syncx.Registry
	Events   *notify.Hub // nil disables /api/events

	RateLimitConfig RateLimitInfo
	PollInterval    time.Duration
	StorageDriver   string
	RecordBackend   string
	AllowedOrigins  []string

	// pub receives sync record changes in place of Events. Set by tests.
	pub notify.Publisher
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError writes {error, correlation_id} with the given status code.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, CorrelationID: GetCorrelationID(r.Context())})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// fail maps service errors to status codes. Validation problems are 400;
// anything else is logged and reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *rosterservice.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, syncx.ErrInvalidRecord),
		errors.Is(err, kvstore.ErrNotObject),
		errors.Is(err, kvstore.ErrInvalidName):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) publisher() notify.Publisher {
	if s.pub != nil {
		return s.pub
	}
	if s.Events != nil {
		return s.Events
	}
	return notify.Discard
}

// Routes creates the HTTP router with every endpoint.
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(Preflight)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if jwt.Enabled() {
			r.Use(auth.Middleware(jwt))
		}
		r.Use(DeviceMiddleware)

		r.Get("/api/info", s.Info)
		if s.Events != nil {
			r.Handle("/api/events", s.Events)
		}

		r.Route("/api/sync", func(r chi.Router) {
			r.Use(NoCache)
			r.Get("/", s.ListSyncKeys)
			r.Get("/{key}", s.GetSyncRecord)

			r.Group(func(r chi.Router) {
				if s.RateLimitConfig.MaxRequests > 0 {
					r.Use(RateLimitMiddleware(s.RateLimitConfig))
				}
				r.Post("/", s.PostSync)
				r.Post("/{key}", s.PostSyncRecord)
			})
		})

		r.Get("/api/schedules", s.ListSchedules)
		r.Get("/api/schedules/{date}", s.GetSchedule)
		r.Post("/api/schedules/{date}", s.SaveSchedule)

		r.Get("/api/assignments", s.ListAssignments)
		r.Get("/api/assignments/{date}", s.GetAssignments)
		r.Post("/api/assignments/{date}", s.SaveAssignments)
		r.Delete("/api/assignments/{date}", s.DeleteAssignments)
		r.Post("/api/assignments/{date}/assign", s.AssignEmployee)
		r.Post("/api/assignments/{date}/remove", s.RemoveEmployee)

		r.Get("/api/dayparts", s.ListDayParts)
		r.Get("/api/dayparts/{date}", s.GetDayPart)
		r.Post("/api/dayparts/{date}", s.SaveDayPart)

		r.Post("/api/backup", s.CreateBackup)
		r.Get("/api/backups", s.ListBackups)
		r.Post("/api/import-local-data", s.ImportLocalData)
	})

	log.Info().Msg("HTTP routes registered")
	return s.withCORS(r)
}

// withCORS lets browser clients on other origins call the API. Preflight
// requests pass through to Preflight so they are always answered.
func (s *Server) withCORS(h http.Handler) http.Handler {
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     corsAllowedHeaders,
		ExposedHeaders:     []string{"X-Correlation-ID", "Retry-After"},
		OptionsPassthrough: true,
	}).Handler(h)
}

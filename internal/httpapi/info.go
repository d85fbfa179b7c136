package httpapi

import (
	"net/http"
	"time"

	"github.com/erauner12/shiftsync/internal/domain"
)

// ServerInfo describes the server's capabilities and configuration
type ServerInfo struct {
	APIVersion  string         `json:"apiVersion"`
	ServerTime  string         `json:"serverTime"`
	Categories  []CategoryInfo `json:"categories"`
	Storage     string         `json:"storage"`
	SyncRecords string         `json:"syncRecords"`
	EventsPath  string         `json:"eventsPath,omitempty"`
	RateLimit   *RateLimitInfo `json:"rateLimit,omitempty"`
	Hints       *SyncHints     `json:"hints"`
}

// CategoryInfo names a document category and its sync key prefix.
type CategoryInfo struct {
	Name       domain.Category `json:"name"`
	SyncPrefix string          `json:"syncPrefix"`
}

// RateLimitInfo describes the server's rate limiting policy
type RateLimitInfo struct {
	WindowSeconds int `json:"windowSeconds"` // e.g. 60
	MaxRequests   int `json:"maxRequests"`   // per window
	Burst         int `json:"burst"`         // token bucket size
}

// SyncHints provides recommendations for client behavior
type SyncHints struct {
	PollIntervalMs int64 `json:"pollIntervalMs"`
	BackoffMsOn429 int   `json:"backoffMsOn429"` // default backoff if Retry-After missing
}

// Info handles GET /api/info
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	poll := s.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	cats := make([]CategoryInfo, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		cats = append(cats, CategoryInfo{Name: c, SyncPrefix: c.SyncPrefix()})
	}

	info := ServerInfo{
		APIVersion:  "1.0",
		ServerTime:  time.Now().UTC().Format(time.RFC3339Nano),
		Categories:  cats,
		Storage:     s.StorageDriver,
		SyncRecords: s.RecordBackend,
		Hints: &SyncHints{
			PollIntervalMs: poll.Milliseconds(),
			BackoffMsOn429: 1500,
		},
	}
	if s.Events != nil {
		info.EventsPath = "/api/events"
	}
	if s.RateLimitConfig.MaxRequests > 0 {
		rl := s.RateLimitConfig
		info.RateLimit = &rl
	}

	writeJSON(w, http.StatusOK, info)
}

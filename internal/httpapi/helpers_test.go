package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erauner12/shiftsync/internal/auth"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// changeLog records published changes.
type changeLog struct {
	changes []notify.Change
}

func (c *changeLog) Publish(ch notify.Change) { c.changes = append(c.changes, ch) }

// newTestServer wires a Server over in-memory stores.
func newTestServer(t *testing.T) (*Server, *changeLog) {
	t.Helper()
	changes := &changeLog{}
	store := kvstore.NewMemory(kvstore.WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	}))
	t.Cleanup(func() { store.Close() })

	registry := syncx.NewRegistry(syncx.NewMemoryRecords())
	srv := &Server{
		Roster:        rosterservice.New(store, changes, registry),
		Registry:      registry,
		StorageDriver: "memory",
		RecordBackend: "memory",
		PollInterval:  10 * time.Second,
		pub:           changes,
	}
	return srv, changes
}

// doRequest makes an HTTP request with an optional JSON body
func doRequest(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader *bytes.Reader
	switch b := body.(type) {
	case nil:
		bodyReader = bytes.NewReader(nil)
	case string:
		bodyReader = bytes.NewReader([]byte(b))
	default:
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeBody decodes the recorder body into v
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
}

func routes(srv *Server) http.Handler {
	return srv.Routes(auth.JWTCfg{})
}

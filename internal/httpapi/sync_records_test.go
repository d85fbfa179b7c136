package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
	"github.com/erauner12/shiftsync/internal/syncx"
)

func assertNoCache(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "no-cache, no-store, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}

func TestGetSyncRecord_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	w := doRequest(t, router, http.MethodGet, "/api/sync/unseen-key", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assertNoCache(t, w.Header())

	var body errorResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "No data found", body.Error)
}

func TestPostSyncRecord_LastWriteWins(t *testing.T) {
	srv, changes := newTestServer(t)
	router := routes(srv)

	w := doRequest(t, router, http.MethodPost, "/api/sync/daypart_2024-06-01", map[string]any{
		"data":      map[string]any{"dayPart": "Lunch"},
		"timestamp": 1000,
		"deviceId":  "A",
		"version":   1000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertNoCache(t, w.Header())
	var first pushResp
	decodeBody(t, w, &first)
	assert.True(t, first.Success)
	assert.True(t, first.Updated)
	assert.Equal(t, int64(1000), first.Timestamp)
	assert.NotZero(t, first.ServerTimestamp)

	w = doRequest(t, router, http.MethodPost, "/api/sync/daypart_2024-06-01", map[string]any{
		"data":      map[string]any{"dayPart": "Breakfast"},
		"timestamp": 900,
		"deviceId":  "B",
		"version":   900,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var second pushResp
	decodeBody(t, w, &second)
	assert.True(t, second.Success)
	assert.False(t, second.Updated)
	assert.Equal(t, int64(1000), second.Timestamp)

	w = doRequest(t, router, http.MethodGet, "/api/sync/daypart_2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertNoCache(t, w.Header())
	assert.JSONEq(t, `{"data":{"dayPart":"Lunch"},"timestamp":1000,"deviceId":"A","version":1000}`, w.Body.String())

	require.Len(t, changes.changes, 1, "only the accepted push is published")
	assert.Equal(t, notify.ActionSynced, changes.changes[0].Action)
	assert.Equal(t, domain.CategoryDayParts, changes.changes[0].Category)
	assert.Equal(t, "2024-06-01", changes.changes[0].Date)
}

func TestPostSyncRecord_EqualTimestamp(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	body := map[string]any{"data": map[string]any{"v": 1}, "timestamp": 500, "deviceId": "A", "version": 500}
	w := doRequest(t, router, http.MethodPost, "/api/sync/schedule_2024-06-01", body)
	require.Equal(t, http.StatusOK, w.Code)

	body["data"] = map[string]any{"v": 2}
	body["deviceId"] = "B"
	w = doRequest(t, router, http.MethodPost, "/api/sync/schedule_2024-06-01", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp pushResp
	decodeBody(t, w, &resp)
	assert.False(t, resp.Updated)

	w = doRequest(t, router, http.MethodGet, "/api/sync/schedule_2024-06-01", nil)
	assert.JSONEq(t, `{"data":{"v":1},"timestamp":500,"deviceId":"A","version":500}`, w.Body.String())
}

func TestPostSyncRecord_InvalidInput(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	tests := []struct {
		name string
		body any
	}{
		{"not json", "{nope"},
		{"empty body", nil},
		{"missing data", map[string]any{"timestamp": 1}},
		{"missing timestamp", map[string]any{"data": map[string]any{}}},
		{"string timestamp", map[string]any{"data": map[string]any{}, "timestamp": "1000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/api/sync/k", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assertNoCache(t, w.Header())
		})
	}
}

func TestPostSync_SingleKeyForm(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	w := doRequest(t, router, http.MethodPost, "/api/sync", map[string]any{
		"key":      "assignments_2024-06-01",
		"syncData": map[string]any{"data": map[string]any{"assignments": map[string]any{}}, "timestamp": 42, "deviceId": "A", "version": 42},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp pushResp
	decodeBody(t, w, &resp)
	assert.True(t, resp.Updated)

	w = doRequest(t, router, http.MethodGet, "/api/sync/assignments_2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/sync", map[string]any{"key": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/sync", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostSync_LegacyBulkForm(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	// A device record far in the future for the schedule key.
	future := map[string]any{"data": map[string]any{"employees": []any{}}, "timestamp": int64(1) << 50, "deviceId": "tablet-1"}
	w := doRequest(t, router, http.MethodPost, "/api/sync/schedule_2024-06-01", future)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/sync", map[string]any{
		"schedules": map[string]any{"2024-06-01": map[string]any{"employees": []any{map[string]any{"name": "Jo"}}}},
		"dayparts":  map[string]any{"2024-06-01": map[string]any{"dayPart": "Lunch"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/api/dayparts/2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dp domain.DayPartDoc
	decodeBody(t, w, &dp)
	assert.Equal(t, domain.Lunch, dp.DayPart)

	// Documents are overwritten without comparing against the newer record.
	w = doRequest(t, router, http.MethodGet, "/api/schedules/2024-06-01", nil)
	var sched domain.ScheduleDoc
	decodeBody(t, w, &sched)
	require.Len(t, sched.Employees, 1)
	assert.Equal(t, "Jo", sched.Employees[0].Name)

	var rec syncx.Record
	w = doRequest(t, router, http.MethodGet, "/api/sync/schedule_2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &rec)
	assert.Equal(t, "tablet-1", rec.DeviceID, "the newer sync record is kept")

	// Keys without a newer record pick up the imported document.
	w = doRequest(t, router, http.MethodGet, "/api/sync/daypart_2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &rec)
	assert.Equal(t, rosterservice.ServerDeviceID, rec.DeviceID)
}

func TestDomainSave_OffersSyncRecord(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	w := doRequest(t, router, http.MethodPost, "/api/dayparts/2024-06-01",
		map[string]any{"dayPart": "Lunch"}, "X-Device-ID", "tablet-2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/api/sync/daypart_2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec syncx.Record
	decodeBody(t, w, &rec)
	assert.Equal(t, "tablet-2", rec.DeviceID)
	assert.Positive(t, rec.Timestamp)
	assert.JSONEq(t, `"Lunch"`, mustField(t, rec.Data, "dayPart"))
}

func mustField(t *testing.T, data json.RawMessage, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return string(m[field])
}

func TestSyncOptions(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	for _, path := range []string{"/api/sync", "/api/sync/schedule_2024-06-01", "/api/schedules/2024-06-01"} {
		t.Run(path, func(t *testing.T) {
			w := doRequest(t, router, http.MethodOptions, path, nil,
				"Origin", "https://board.example",
				"Access-Control-Request-Method", "POST")
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))

			// Without preflight headers it is still answered.
			w = doRequest(t, router, http.MethodOptions, path, nil)
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestListSyncKeys(t *testing.T) {
	srv, _ := newTestServer(t)
	router := routes(srv)

	doRequest(t, router, http.MethodPost, "/api/sync/schedule_2024-06-01",
		map[string]any{"data": map[string]any{}, "timestamp": 1})

	w := doRequest(t, router, http.MethodGet, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keys":["schedule_2024-06-01"]}`, w.Body.String())
}

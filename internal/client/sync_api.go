package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erauner12/shiftsync/internal/syncx"
)

// RecordAPI is the server side of reconciliation.
type RecordAPI interface {
	GetRecord(ctx context.Context, key string) (*syncx.Record, error)
	PushRecord(ctx context.Context, key string, rec syncx.Record) (*syncx.OfferResult, error)
}

// SyncClient calls the /api/sync endpoints.
type SyncClient struct {
	http  *HTTPClient
	nowMs func() int64
}

// NewSyncClient wraps an HTTPClient.
func NewSyncClient(httpClient *HTTPClient) *SyncClient {
	return &SyncClient{http: httpClient, nowMs: syncx.NowMs}
}

func (c *SyncClient) recordURL(key string) string {
	return c.http.baseURL + "/api/sync/" + url.PathEscape(key)
}

// GetRecord fetches the record for key, bypassing caches. Returns nil, nil on 404.
func (c *SyncClient) GetRecord(ctx context.Context, key string) (*syncx.Record, error) {
	reqURL := c.recordURL(key) + "?_t=" + strconv.FormatInt(c.nowMs(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError("get "+key, resp)
	}

	var rec syncx.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode sync record: %w", err)
	}
	return &rec, nil
}

// pushResponse mirrors the server's push acknowledgement.
type pushResponse struct {
	Success bool `json:"success"`
	syncx.OfferResult
}

// PushRecord offers rec for key. The result reports whether it won.
func (c *SyncClient) PushRecord(ctx context.Context, key string, rec syncx.Record) (*syncx.OfferResult, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recordURL(key), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("push "+key, resp)
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return &out.OfferResult, nil
}

// ListKeys returns every key the server holds a record for.
func (c *SyncClient) ListKeys(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.http.baseURL+"/api/sync", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list keys", resp)
	}
	var out struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode key list: %w", err)
	}
	return out.Keys, nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var e struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(b))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Body: msg}
}

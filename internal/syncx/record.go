// Package syncx implements last-write-wins reconciliation of per-key records.
//
// Ordering is by the writer's wall-clock millisecond timestamp only. There is
// no merge: when two devices edit the same key, the record with the lower
// timestamp is dropped in its entirety, and equal timestamps keep whichever
// record arrived first.
package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidRecord is returned for records that cannot take part in ordering.
var ErrInvalidRecord = errors.New("invalid sync record")

// Record is the latest accepted value for one sync key.
type Record struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	DeviceID  string          `json:"deviceId"`
	Version   int64           `json:"version"`
}

// Validate checks the fields the server relies on.
func (r Record) Validate() error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return fmt.Errorf("%w: data is required", ErrInvalidRecord)
	}
	if !json.Valid(r.Data) {
		return fmt.Errorf("%w: data is not valid JSON", ErrInvalidRecord)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidRecord)
	}
	return nil
}

// Accepts reports whether offered should replace stored: true when nothing is
// stored yet or offered is strictly newer.
func Accepts(stored *Record, offered Record) bool {
	return stored == nil || offered.Timestamp > stored.Timestamp
}

// RecordStore is a dumb key to record map. Set overwrites unconditionally;
// callers decide ordering with Accepts.
type RecordStore interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, rec Record) error
	Keys(ctx context.Context) ([]string, error)
}

// MemoryRecords keeps records in process memory. Everything is lost on restart.
type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRecords creates an empty store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]Record)}
}

func (m *MemoryRecords) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryRecords) Set(_ context.Context, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
	return nil
}

func (m *MemoryRecords) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type deviceKey struct{}

// WithDevice returns ctx carrying the ID of the device a write came from.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// DeviceFrom returns the device ID set by WithDevice, or "".
func DeviceFrom(ctx context.Context) string {
	id, _ := ctx.Value(deviceKey{}).(string)
	return id
}

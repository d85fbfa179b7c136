package kvstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory keeps documents in a process map. Contents are lost on restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		data: make(map[string]map[string][]byte),
		now:  o.now,
	}
}

func (m *Memory) Read(_ context.Context, category, key string) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[category][key]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), v...), nil
}

func (m *Memory) Write(_ context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	stored, err := stamp(doc, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[category]
	if !ok {
		ns = make(map[string][]byte)
		m.data[category] = ns
	}
	ns[key] = stored
	return append(json.RawMessage(nil), stored...), nil
}

func (m *Memory) List(_ context.Context, category string) ([]string, error) {
	if err := checkName(category, "", false); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[category]))
	for k := range m.data[category] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *Memory) Delete(_ context.Context, category, key string) error {
	if err := checkName(category, key, true); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[category], key)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

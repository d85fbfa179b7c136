package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/erauner12/shiftsync/internal/kvstore"
)

// RecordCategory is the keyed-store category holding sync records.
const RecordCategory = "sync"

// KVRecords persists records in a keyed JSON store so they survive restarts.
type KVRecords struct {
	store    kvstore.Store
	category string
}

// NewKVRecords stores records under RecordCategory.
func NewKVRecords(store kvstore.Store) *KVRecords {
	return &KVRecords{store: store, category: RecordCategory}
}

// storedRecord is Record plus the lastUpdated stamp the keyed store adds.
type storedRecord struct {
	Record
	LastUpdated string `json:"lastUpdated,omitempty"`
}

func (k *KVRecords) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := k.store.Read(ctx, k.category, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode sync record %s: %w", key, err)
	}
	return &rec.Record, nil
}

func (k *KVRecords) Set(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sync record %s: %w", key, err)
	}
	if _, err := k.store.Write(ctx, k.category, key, raw); err != nil {
		return err
	}
	return nil
}

func (k *KVRecords) Keys(ctx context.Context) ([]string, error) {
	keys, err := k.store.List(ctx, k.category)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

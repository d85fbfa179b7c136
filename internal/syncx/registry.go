package syncx

import (
	"context"
	"sync"
)

// OfferResult reports the outcome of Registry.Offer.
type OfferResult struct {
	// Updated is true when the offered record became the stored one.
	Updated bool `json:"updated"`
	// Timestamp is the timestamp of the record stored after the offer.
	Timestamp int64 `json:"timestamp"`
	// ServerTimestamp is the server clock when the offer was decided.
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// Registry applies last-write-wins on top of a RecordStore.
type Registry struct {
	store RecordStore
	now   func() int64
	mu    sync.Mutex
}

// NewRegistry wraps store.
func NewRegistry(store RecordStore) *Registry {
	return &Registry{store: store, now: NowMs}
}

// Get returns the stored record or nil.
func (r *Registry) Get(ctx context.Context, key string) (*Record, error) {
	return r.store.Get(ctx, key)
}

// Keys lists every key with a record.
func (r *Registry) Keys(ctx context.Context) ([]string, error) {
	return r.store.Keys(ctx)
}

// Offer stores rec under key if Accepts allows it. The read and the
// conditional write happen under one lock so concurrent offers cannot both win.
func (r *Registry) Offer(ctx context.Context, key string, rec Record) (OfferResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.Get(ctx, key)
	if err != nil {
		return OfferResult{}, err
	}
	if !Accepts(stored, rec) {
		return OfferResult{Updated: false, Timestamp: stored.Timestamp, ServerTimestamp: r.now()}, nil
	}
	if err := r.store.Set(ctx, key, rec); err != nil {
		return OfferResult{}, err
	}
	return OfferResult{Updated: true, Timestamp: rec.Timestamp, ServerTimestamp: r.now()}, nil
}

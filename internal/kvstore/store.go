// Package kvstore persists JSON documents under (category, key) pairs.
//
// Every backend shares one contract:
//   - Read returns (nil, nil) for a missing key; a miss is never an error.
//   - Write overwrites unconditionally and stamps "lastUpdated" into the stored object.
//   - List enumerates keys of a category in no particular order.
//   - I/O failures propagate to the caller.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotObject is returned when a document is not a JSON object.
	ErrNotObject = errors.New("document must be a JSON object")

	// ErrInvalidName is returned for empty or path-like categories and keys.
	ErrInvalidName = errors.New("invalid category or key")
)

// TimeLayout matches JavaScript's Date.toISOString output.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Store is the keyed JSON document store.
type Store interface {
	Read(ctx context.Context, category, key string) (json.RawMessage, error)
	Write(ctx context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error)
	List(ctx context.Context, category string) ([]string, error)
	Delete(ctx context.Context, category, key string) error
	Close() error
}

type options struct {
	now func() time.Time
}

// Option configures a backend.
type Option func(*options)

// WithClock overrides the clock used for lastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// stamp sets lastUpdated on a JSON object document.
func stamp(doc json.RawMessage, at time.Time) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	ts, err := json.Marshal(FormatTime(at))
	if err != nil {
		return nil, err
	}
	fields["lastUpdated"] = ts
	return json.Marshal(fields)
}

// checkName rejects names that could escape a namespace. Categories may use
// "/" to nest (backups/<id>/schedules); keys may not.
func checkName(category, key string, keyRequired bool) error {
	if category == "" || strings.HasPrefix(category, "/") || strings.HasSuffix(category, "/") {
		return fmt.Errorf("%w: category %q", ErrInvalidName, category)
	}
	for _, part := range strings.Split(category, "/") {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `\`) {
			return fmt.Errorf("%w: category %q", ErrInvalidName, category)
		}
	}
	if !keyRequired {
		return nil
	}
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: key %q", ErrInvalidName, key)
	}
	return nil
}

// Collection is a typed view over one category.
type Collection[T any] struct {
	store    Store
	category string
}

// NewCollection binds a typed view to category.
func NewCollection[T any](store Store, category string) *Collection[T] {
	return &Collection[T]{store: store, category: category}
}

// Category returns the bound category.
func (c *Collection[T]) Category() string {
	return c.category
}

// Get decodes the document at key. Returns nil, nil when missing.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := c.store.Read(ctx, c.category, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.category, key, err)
	}
	return &v, nil
}

// Put encodes v, writes it and returns the stored value including its stamp.
func (c *Collection[T]) Put(ctx context.Context, key string, v T) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", c.category, key, err)
	}
	stored, err := c.store.Write(ctx, c.category, key, raw)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(stored, &out); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.category, key, err)
	}
	return &out, nil
}

// Keys lists the keys stored in the category.
func (c *Collection[T]) Keys(ctx context.Context) ([]string, error) {
	return c.store.List(ctx, c.category)
}

// Delete removes key from the category.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.category, key)
}

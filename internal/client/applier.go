package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// Applier moves adopted record data into local application state.
type Applier interface {
	Apply(ctx context.Context, key string, data json.RawMessage) error
}

// StoreApplier writes adopted documents into a local keyed store laid out
// like the server's (category/date).
type StoreApplier struct {
	Store kvstore.Store
}

// Apply decodes data as the document kind named by the key prefix and
// writes it under (category, date).
func (a StoreApplier) Apply(ctx context.Context, key string, data json.RawMessage) error {
	k, ok := syncx.ParseKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	doc, err := domain.DecodeDoc(k.Category, data)
	if err != nil {
		return err
	}

	if d, ok := doc.(*domain.DayPartDoc); ok && !d.DayPart.Valid() {
		return fmt.Errorf("record %s: invalid dayPart %q", key, d.DayPart)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = a.Store.Write(ctx, string(k.Category), k.Date, raw)
	return err
}

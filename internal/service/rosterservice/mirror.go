package rosterservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// ServerDeviceID tags sync records for writes that did not name a device.
const ServerDeviceID = "server"

// RecordOfferer accepts sync records under last-write-wins. *syncx.Registry
// implements it.
type RecordOfferer interface {
	Offer(ctx context.Context, key string, rec syncx.Record) (syncx.OfferResult, error)
}

// mirror offers every stored document as the sync record for its key, so
// reconciling devices pick up edits made through the domain endpoints.
type mirror struct {
	records RecordOfferer // nil disables mirroring
	nowMs   func() int64

	mu   sync.Mutex
	last int64
}

// stamp returns a millisecond timestamp strictly greater than the previous
// one, so two server writes in the same millisecond still order.
func (m *mirror) stamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := max(m.nowMs(), m.last+1)
	m.last = ts
	return ts
}

func (m *mirror) offer(ctx context.Context, c domain.Category, date string, doc domain.Doc) error {
	if m == nil || m.records == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	device := syncx.DeviceFrom(ctx)
	if device == "" {
		device = ServerDeviceID
	}

	key := syncx.KeyFor(c, date)
	ts := m.stamp()
	res, err := m.records.Offer(ctx, key, syncx.Record{Data: data, Timestamp: ts, DeviceID: device, Version: ts})
	if err != nil {
		return fmt.Errorf("sync record %s: %w", key, err)
	}
	if !res.Updated {
		log.Ctx(ctx).Warn().
			Str("key", key).
			Int64("offered", ts).
			Int64("stored", res.Timestamp).
			Msg("sync record is newer than the server clock; document not mirrored")
	}
	return nil
}

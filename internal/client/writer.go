package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// SaveResult reports the outcome of Writer.Save.
type SaveResult struct {
	// Updated is false when the server already held a newer record and
	// this write lost.
	Updated   bool
	Timestamp int64
}

// Writer is the device write path: local store first, then the server.
type Writer struct {
	API      RecordAPI
	Cache    syncx.RecordStore
	Local    Applier
	DeviceID string

	nowMs func() int64
}

// NewWriter creates a Writer stamping records with the wall clock.
func NewWriter(api RecordAPI, cache syncx.RecordStore, local Applier, deviceID string) *Writer {
	return &Writer{API: api, Cache: cache, Local: local, DeviceID: deviceID, nowMs: syncx.NowMs}
}

// Save writes doc locally and pushes it under key. A push that loses to a
// newer server record is undone: the winning record is fetched and applied
// over the local write, and cached.
func (w *Writer) Save(ctx context.Context, key string, doc domain.Doc) (SaveResult, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return SaveResult{}, err
	}
	if err := w.Local.Apply(ctx, key, data); err != nil {
		return SaveResult{}, fmt.Errorf("local save %s: %w", key, err)
	}

	now := w.nowMs()
	rec := syncx.Record{Data: data, Timestamp: now, DeviceID: w.DeviceID, Version: now}
	res, err := w.API.PushRecord(ctx, key, rec)
	if err != nil {
		return SaveResult{}, fmt.Errorf("push %s: %w", key, err)
	}

	if !res.Updated {
		log.Warn().
			Str("key", key).
			Int64("offered", now).
			Int64("stored", res.Timestamp).
			Msg("Write lost to a newer record")
		if err := w.adoptWinner(ctx, key); err != nil {
			return SaveResult{Timestamp: res.Timestamp}, fmt.Errorf("restore %s: %w", key, err)
		}
		return SaveResult{Updated: false, Timestamp: res.Timestamp}, nil
	}

	if err := w.Cache.Set(ctx, key, rec); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Updated: true, Timestamp: now}, nil
}

// adoptWinner replaces the local document with the server's record. The
// cache may already hold that record, in which case no later pass would
// see it as newer.
func (w *Writer) adoptWinner(ctx context.Context, key string) error {
	rec, err := w.API.GetRecord(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := w.Local.Apply(ctx, key, rec.Data); err != nil {
		return err
	}
	return w.Cache.Set(ctx, key, *rec)
}

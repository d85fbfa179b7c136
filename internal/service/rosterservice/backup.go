package rosterservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
)

// BackupCategory holds one manifest per snapshot; the documents themselves
// live under backups/<id>/<category>.
const BackupCategory = "backups"

// BackupInfo describes one snapshot.
type BackupInfo struct {
	ID        string                  `json:"id"`
	CreatedAt string                  `json:"createdAt"`
	Counts    map[domain.Category]int `json:"counts"`
}

// Backup copies every category into a timestamped namespace.
type Backup struct {
	store kvstore.Store
	now   func() time.Time
}

// Snapshot copies all domain documents and records a manifest.
func (b *Backup) Snapshot(ctx context.Context) (*BackupInfo, error) {
	at := b.now().UTC()
	info := &BackupInfo{
		ID:        at.Format("20060102T150405.000Z") + "-" + uuid.NewString()[:8],
		CreatedAt: kvstore.FormatTime(at),
		Counts:    make(map[domain.Category]int, len(domain.Categories)),
	}

	for _, c := range domain.Categories {
		keys, err := b.store.List(ctx, string(c))
		if err != nil {
			return nil, fmt.Errorf("backup list %s: %w", c, err)
		}
		target := BackupCategory + "/" + info.ID + "/" + string(c)
		for _, key := range keys {
			doc, err := b.store.Read(ctx, string(c), key)
			if err != nil {
				return nil, fmt.Errorf("backup read %s/%s: %w", c, key, err)
			}
			if doc == nil {
				continue
			}
			if _, err := b.store.Write(ctx, target, key, doc); err != nil {
				return nil, fmt.Errorf("backup write %s/%s: %w", target, key, err)
			}
			info.Counts[c]++
		}
	}

	manifest, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	if _, err := b.store.Write(ctx, BackupCategory, info.ID, manifest); err != nil {
		return nil, fmt.Errorf("backup manifest: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("backup_id", info.ID).
		Interface("counts", info.Counts).
		Msg("backup created")
	return info, nil
}

// List returns every snapshot manifest, newest first.
func (b *Backup) List(ctx context.Context) ([]BackupInfo, error) {
	ids, err := b.store.List(ctx, BackupCategory)
	if err != nil {
		return nil, err
	}
	out := make([]BackupInfo, 0, len(ids))
	for _, id := range ids {
		raw, err := b.store.Read(ctx, BackupCategory, id)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		var info BackupInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("decode backup manifest %s: %w", id, err)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

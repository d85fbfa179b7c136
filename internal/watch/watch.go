// Package watch turns edits made directly to a file-backed store into
// change notifications, so clients learn about documents that did not
// arrive through the API.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// Source marks changes reported by the watcher.
const Source = "file"

// Watcher watches the per-category directories of a file store.
type Watcher struct {
	fsw  *fsnotify.Watcher
	pub  notify.Publisher
	dirs map[string]domain.Category
}

// New watches <root>/<category> for every domain category, creating the
// directories when missing.
func New(root string, pub notify.Publisher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, pub: pub, dirs: make(map[string]domain.Category)}
	for _, c := range domain.Categories {
		dir := filepath.Clean(filepath.Join(root, string(c)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = c
	}
	return w, nil
}

// Run publishes changes until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log.Info().Int("dirs", len(w.dirs)).Msg("File watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if c, ok := w.convert(ev); ok {
				log.Debug().Str("key", c.Key).Str("action", string(c.Action)).Msg("External document change")
				w.pub.Publish(c)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// convert maps an fsnotify event on <dir>/<date>.json to a Change.
// Temp files, non-date names and chmod events are ignored.
func (w *Watcher) convert(ev fsnotify.Event) (notify.Change, bool) {
	name := filepath.Base(ev.Name)
	date, ok := strings.CutSuffix(name, ".json")
	if !ok || !domain.ValidDate(date) {
		return notify.Change{}, false
	}
	c, ok := w.dirs[filepath.Clean(filepath.Dir(ev.Name))]
	if !ok {
		return notify.Change{}, false
	}

	var action notify.Action
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		action = notify.ActionSaved
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		action = notify.ActionDeleted
	default:
		return notify.Change{}, false
	}

	return notify.Change{
		Category: c,
		Date:     date,
		Key:      syncx.KeyFor(c, date),
		Action:   action,
		Source:   Source,
		At:       time.Now().UTC(),
	}, true
}

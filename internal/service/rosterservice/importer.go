package rosterservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// ImportResult lists which entries were written.
type ImportResult struct {
	Imported []string          `json:"imported"`
	Skipped  map[string]string `json:"skipped,omitempty"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Imported: []string{}, Skipped: map[string]string{}}
}

func (r *ImportResult) skip(key string, err error) {
	r.Skipped[key] = err.Error()
}

// BulkImport is the legacy {schedules, assignments, dayparts} payload, each
// keyed by date.
type BulkImport struct {
	Schedules   map[string]json.RawMessage `json:"schedules,omitempty"`
	Assignments map[string]json.RawMessage `json:"assignments,omitempty"`
	DayParts    map[string]json.RawMessage `json:"dayparts,omitempty"`
}

// Empty reports whether the payload carries no entries at all.
func (b BulkImport) Empty() bool {
	return len(b.Schedules) == 0 && len(b.Assignments) == 0 && len(b.DayParts) == 0
}

// Importer writes client-cached documents into the domain stores.
// Entries are written unconditionally; there is no timestamp comparison.
type Importer struct {
	schedules   *Schedules
	assignments *Assignments
	dayParts    *DayParts
}

// ImportLocal imports a client's cached key/value pairs
// (schedule_*, assignments_*, daypart_* and lastDayPart_*). Unknown keys and
// undecodable values are reported as skipped.
func (im *Importer) ImportLocal(ctx context.Context, entries map[string]json.RawMessage) (*ImportResult, error) {
	res := newImportResult()
	for _, key := range sortedKeys(entries) {
		k, ok := syncx.ParseKey(key)
		if !ok {
			res.Skipped[key] = "unrecognized key"
			continue
		}
		if err := im.importOne(ctx, k.Category, k.Date, entries[key]); err != nil {
			if !isInputError(err) {
				return nil, err
			}
			res.skip(key, err)
			continue
		}
		res.Imported = append(res.Imported, key)
	}
	log.Ctx(ctx).Info().
		Int("imported", len(res.Imported)).
		Int("skipped", len(res.Skipped)).
		Msg("local data imported")
	return res, nil
}

// ImportBulk writes every entry of the legacy bulk payload.
func (im *Importer) ImportBulk(ctx context.Context, in BulkImport) (*ImportResult, error) {
	res := newImportResult()
	groups := []struct {
		category domain.Category
		entries  map[string]json.RawMessage
	}{
		{domain.CategorySchedules, in.Schedules},
		{domain.CategoryAssignments, in.Assignments},
		{domain.CategoryDayParts, in.DayParts},
	}
	for _, g := range groups {
		for _, date := range sortedKeys(g.entries) {
			key := syncx.KeyFor(g.category, date)
			if err := validateDate(date); err != nil {
				res.skip(key, err)
				continue
			}
			if err := im.importOne(ctx, g.category, date, g.entries[date]); err != nil {
				if !isInputError(err) {
					return nil, err
				}
				res.skip(key, err)
				continue
			}
			res.Imported = append(res.Imported, key)
		}
	}
	return res, nil
}

func (im *Importer) importOne(ctx context.Context, c domain.Category, date string, raw json.RawMessage) error {
	raw = unwrapString(raw)
	switch c {
	case domain.CategorySchedules:
		var doc domain.ScheduleDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return invalid("schedule", date, ErrInvalidPayload)
		}
		_, err := im.schedules.put(ctx, date, doc)
		return err
	case domain.CategoryAssignments:
		var doc domain.AssignmentDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return invalid("assignments", date, ErrInvalidPayload)
		}
		if doc.DayPart != "" && !doc.DayPart.Valid() {
			return invalid("dayPart", string(doc.DayPart), ErrInvalidDayPart)
		}
		im.assignments.mu.Lock()
		defer im.assignments.mu.Unlock()
		_, err := im.assignments.put(ctx, date, doc)
		return err
	case domain.CategoryDayParts:
		dayPart, err := decodeDayPart(raw)
		if err != nil {
			return err
		}
		_, err = im.dayParts.Save(ctx, date, dayPart)
		return err
	default:
		return fmt.Errorf("unknown category %q", c)
	}
}

// unwrapString returns the inner document when raw is a JSON string holding
// JSON, as produced by clients that cache values with JSON.stringify.
func unwrapString(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return raw
}

// decodeDayPart accepts "Lunch" or {"dayPart":"Lunch"}.
func decodeDayPart(raw json.RawMessage) (domain.DayPart, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		dp := domain.DayPart(s)
		if !dp.Valid() {
			return "", invalid("dayPart", s, ErrInvalidDayPart)
		}
		return dp, nil
	}
	var doc domain.DayPartDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", invalid("dayPart", "", ErrInvalidPayload)
	}
	if !doc.DayPart.Valid() {
		return "", invalid("dayPart", string(doc.DayPart), ErrInvalidDayPart)
	}
	return doc.DayPart, nil
}

func isInputError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

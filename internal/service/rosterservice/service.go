// Package rosterservice exposes the schedule, assignment and day-part
// documents stored per date, plus backup and import of those documents.
package rosterservice

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/syncx"
)

// Service groups the domain stores over one keyed store.
type Service struct {
	Schedules   *Schedules
	Assignments *Assignments
	DayParts    *DayParts
	Backup      *Backup
	Importer    *Importer
}

// New wires the domain stores. Saved documents are offered to records as
// sync records; pub and records may be nil.
func New(store kvstore.Store, pub notify.Publisher, records RecordOfferer) *Service {
	if pub == nil {
		pub = notify.Discard
	}
	m := &mirror{records: records, nowMs: syncx.NowMs}
	assignments := &Assignments{
		docs:   kvstore.NewCollection[domain.AssignmentDoc](store, string(domain.CategoryAssignments)),
		pub:    pub,
		mirror: m,
	}
	schedules := &Schedules{
		docs:        kvstore.NewCollection[domain.ScheduleDoc](store, string(domain.CategorySchedules)),
		assignments: assignments,
		pub:         pub,
		mirror:      m,
		now:         time.Now,
	}
	dayParts := &DayParts{
		docs:   kvstore.NewCollection[domain.DayPartDoc](store, string(domain.CategoryDayParts)),
		pub:    pub,
		mirror: m,
	}
	return &Service{
		Schedules:   schedules,
		Assignments: assignments,
		DayParts:    dayParts,
		Backup:      &Backup{store: store, now: time.Now},
		Importer:    &Importer{schedules: schedules, assignments: assignments, dayParts: dayParts},
	}
}

func validateDate(date string) error {
	if !domain.ValidDate(date) {
		return invalid("date", date, ErrInvalidDate)
	}
	return nil
}

func publish(ctx context.Context, pub notify.Publisher, c domain.Category, date string, action notify.Action) {
	pub.Publish(notify.Change{
		Category: c,
		Date:     date,
		Key:      syncx.KeyFor(c, date),
		Action:   action,
		At:       time.Now().UTC(),
	})
	log.Ctx(ctx).Debug().
		Str("category", string(c)).
		Str("date", date).
		Str("action", string(action)).
		Msg("document changed")
}

// sortDatesDesc orders date keys newest first, dropping anything that is not a date.
func sortDatesDesc(keys []string) []string {
	dates := keys[:0]
	for _, k := range keys {
		if domain.ValidDate(k) {
			dates = append(dates, k)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return strings.Compare(dates[i], dates[j]) > 0 })
	return dates
}

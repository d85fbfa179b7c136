package syncx

import (
	"strings"

	"github.com/erauner12/shiftsync/internal/domain"
)

// legacyDayPartPrefix is the day-part key prefix older clients cache under.
const legacyDayPartPrefix = "lastDayPart"

// Key identifies the domain document a sync key refers to.
type Key struct {
	Category domain.Category
	Date     string
}

// String renders the canonical sync key, e.g. schedule_2024-06-01.
func (k Key) String() string {
	return k.Category.SyncPrefix() + "_" + k.Date
}

// KeyFor builds the canonical key for a category and date.
func KeyFor(c domain.Category, date string) string {
	return Key{Category: c, Date: date}.String()
}

// ParseKey maps a sync key to its category and date. The legacy
// lastDayPart_ prefix is accepted for day-parts.
func ParseKey(s string) (Key, bool) {
	prefix, date, ok := strings.Cut(s, "_")
	if !ok || !domain.ValidDate(date) {
		return Key{}, false
	}
	if prefix == legacyDayPartPrefix {
		return Key{Category: domain.CategoryDayParts, Date: date}, true
	}
	for _, c := range domain.Categories {
		if c.SyncPrefix() == prefix {
			return Key{Category: c, Date: date}, true
		}
	}
	return Key{}, false
}

// WatchedKeys returns the canonical keys for every category on date.
func WatchedKeys(date string) []string {
	keys := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		keys = append(keys, KeyFor(c, date))
	}
	return keys
}

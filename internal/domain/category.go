// Package domain holds the scheduling documents that are stored per date and
// synchronized between devices.
package domain

import (
	"regexp"
	"time"
)

// Category names a family of date-keyed documents.
type Category string

const (
	CategorySchedules   Category = "schedules"
	CategoryAssignments Category = "assignments"
	CategoryDayParts    Category = "dayparts"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategorySchedules, CategoryAssignments, CategoryDayParts}

// SyncPrefix is the key prefix used for this category in the sync record store.
func (c Category) SyncPrefix() string {
	switch c {
	case CategorySchedules:
		return "schedule"
	case CategoryAssignments:
		return "assignments"
	case CategoryDayParts:
		return "daypart"
	default:
		return string(c)
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a YYYY-MM-DD string naming a real calendar day.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// DateOf formats t as a date key.
func DateOf(t time.Time) string {
	return t.Format(dateLayout)
}

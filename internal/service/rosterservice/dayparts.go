package rosterservice

import (
	"context"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
)

// DayPartSummary is one row of the day-part listing.
type DayPartSummary struct {
	Date        string         `json:"date"`
	DayPart     domain.DayPart `json:"dayPart"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
}

// DayParts stores the selected day-part per date.
type DayParts struct {
	docs   *kvstore.Collection[domain.DayPartDoc]
	pub    notify.Publisher
	mirror *mirror
}

// Save stores dayPart for date.
func (d *DayParts) Save(ctx context.Context, date string, dayPart domain.DayPart) (*domain.DayPartDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if !dayPart.Valid() {
		return nil, invalid("dayPart", string(dayPart), ErrInvalidDayPart)
	}
	stored, err := d.docs.Put(ctx, date, domain.DayPartDoc{DayPart: dayPart})
	if err != nil {
		return nil, err
	}
	stored.Normalize()
	if err := d.mirror.offer(ctx, domain.CategoryDayParts, date, stored); err != nil {
		return nil, err
	}
	publish(ctx, d.pub, domain.CategoryDayParts, date, notify.ActionSaved)
	return stored, nil
}

// Get returns the day-part for date, or Breakfast.
func (d *DayParts) Get(ctx context.Context, date string) (*domain.DayPartDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	doc, err := d.docs.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &domain.DayPartDoc{}
	}
	doc.Normalize()
	return doc, nil
}

// List returns every stored day-part, newest date first.
func (d *DayParts) List(ctx context.Context) ([]DayPartSummary, error) {
	keys, err := d.docs.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DayPartSummary, 0, len(keys))
	for _, date := range sortDatesDesc(keys) {
		doc, err := d.docs.Get(ctx, date)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		doc.Normalize()
		out = append(out, DayPartSummary{Date: date, DayPart: doc.DayPart, LastUpdated: doc.LastUpdated})
	}
	return out, nil
}

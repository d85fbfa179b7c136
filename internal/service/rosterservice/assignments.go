package rosterservice

import (
	"context"
	"sync"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
)

// AssignmentInput is the body of an assignment save.
type AssignmentInput struct {
	Assignments domain.AssignmentMap `json:"assignments"`
	DayPart     domain.DayPart       `json:"dayPart,omitempty"`
}

// SlotInput is the body of the assign and remove sub-actions.
type SlotInput struct {
	domain.Slot
	Employee string `json:"employee"`
}

// AssignmentSummary is one row of the assignment listing.
type AssignmentSummary struct {
	Date        string         `json:"date"`
	Count       int            `json:"count"`
	DayPart     domain.DayPart `json:"dayPart,omitempty"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
}

// Assignments stores the station grid per date.
type Assignments struct {
	docs   *kvstore.Collection[domain.AssignmentDoc]
	pub    notify.Publisher
	mirror *mirror
	mu     sync.Mutex // serializes read-modify-write of the grid
}

// Save replaces the grid for date.
func (a *Assignments) Save(ctx context.Context, date string, in AssignmentInput) (*domain.AssignmentDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if in.Assignments == nil {
		return nil, invalid("assignments", "", ErrInvalidPayload)
	}
	if in.DayPart != "" && !in.DayPart.Valid() {
		return nil, invalid("dayPart", string(in.DayPart), ErrInvalidDayPart)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.put(ctx, date, domain.AssignmentDoc{Assignments: in.Assignments, DayPart: in.DayPart})
}

func (a *Assignments) put(ctx context.Context, date string, doc domain.AssignmentDoc) (*domain.AssignmentDoc, error) {
	doc.LastUpdated = ""
	doc.Normalize()
	stored, err := a.docs.Put(ctx, date, doc)
	if err != nil {
		return nil, err
	}
	stored.Normalize()
	if err := a.mirror.offer(ctx, domain.CategoryAssignments, date, stored); err != nil {
		return nil, err
	}
	publish(ctx, a.pub, domain.CategoryAssignments, date, notify.ActionSaved)
	return stored, nil
}

// Get returns the grid for date, or an empty grid.
func (a *Assignments) Get(ctx context.Context, date string) (*domain.AssignmentDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return a.get(ctx, date)
}

func (a *Assignments) get(ctx context.Context, date string) (*domain.AssignmentDoc, error) {
	doc, err := a.docs.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &domain.AssignmentDoc{}
	}
	doc.Normalize()
	return doc, nil
}

// Delete removes the grid for date. Deleting a missing grid is not an error.
// Devices see the deletion as an empty grid.
func (a *Assignments) Delete(ctx context.Context, date string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.docs.Delete(ctx, date); err != nil {
		return err
	}
	empty := &domain.AssignmentDoc{}
	empty.Normalize()
	if err := a.mirror.offer(ctx, domain.CategoryAssignments, date, empty); err != nil {
		return err
	}
	publish(ctx, a.pub, domain.CategoryAssignments, date, notify.ActionDeleted)
	return nil
}

// Assign places employee into slot. Placing someone already there is a no-op.
func (a *Assignments) Assign(ctx context.Context, date string, in SlotInput) (*domain.AssignmentDoc, error) {
	return a.modify(ctx, date, in, domain.AssignmentMap.Add)
}

// Remove takes employee out of slot, pruning empty levels of the grid.
func (a *Assignments) Remove(ctx context.Context, date string, in SlotInput) (*domain.AssignmentDoc, error) {
	return a.modify(ctx, date, in, domain.AssignmentMap.Remove)
}

func (a *Assignments) modify(ctx context.Context, date string, in SlotInput, apply func(domain.AssignmentMap, domain.Slot, string) bool) (*domain.AssignmentDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	switch {
	case in.DayPart == "":
		return nil, invalid("dayPart", "", ErrInvalidPayload)
	case in.StationID == "":
		return nil, invalid("stationId", "", ErrInvalidPayload)
	case in.Column == "":
		return nil, invalid("column", "", ErrInvalidPayload)
	case in.Employee == "":
		return nil, invalid("employee", "", ErrInvalidPayload)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.get(ctx, date)
	if err != nil {
		return nil, err
	}
	if !apply(doc.Assignments, in.Slot, in.Employee) {
		return doc, nil
	}
	return a.put(ctx, date, *doc)
}

// List summarizes every stored grid, newest date first.
func (a *Assignments) List(ctx context.Context) ([]AssignmentSummary, error) {
	keys, err := a.docs.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AssignmentSummary, 0, len(keys))
	for _, date := range sortDatesDesc(keys) {
		doc, err := a.docs.Get(ctx, date)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		out = append(out, AssignmentSummary{
			Date:        date,
			Count:       doc.Assignments.Count(),
			DayPart:     doc.DayPart,
			LastUpdated: doc.LastUpdated,
		})
	}
	return out, nil
}

package rosterservice

import (
	"context"
	"fmt"
	"time"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/notify"
)

// ScheduleInput is the body of a schedule save.
type ScheduleInput struct {
	Employees  []domain.Employee `json:"employees"`
	FileName   string            `json:"fileName,omitempty"`
	UploadedAt string            `json:"uploadedAt,omitempty"`
	// ReplaceAll clears the date's assignments. When false the roster is
	// swapped underneath existing assignments, which may then name people no
	// longer on the schedule.
	ReplaceAll bool `json:"replaceAll"`
}

// ScheduleSummary is one row of the schedule listing.
type ScheduleSummary struct {
	Date          string `json:"date"`
	EmployeeCount int    `json:"employeeCount"`
	FileName      string `json:"fileName,omitempty"`
	UploadedAt    string `json:"uploadedAt,omitempty"`
	LastUpdated   string `json:"lastUpdated,omitempty"`
}

// Schedules stores the employee roster per date.
type Schedules struct {
	docs        *kvstore.Collection[domain.ScheduleDoc]
	assignments *Assignments
	pub         notify.Publisher
	mirror      *mirror
	now         func() time.Time
}

// Save validates and stores the roster for date.
func (s *Schedules) Save(ctx context.Context, date string, in ScheduleInput) (*domain.ScheduleDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if in.Employees == nil {
		return nil, invalid("employees", "", ErrInvalidPayload)
	}
	for i, e := range in.Employees {
		if e.Name == "" {
			return nil, invalid(fmt.Sprintf("employees[%d].name", i), "", ErrInvalidPayload)
		}
	}

	uploadedAt := in.UploadedAt
	if uploadedAt == "" {
		uploadedAt = kvstore.FormatTime(s.now())
	}
	stored, err := s.put(ctx, date, domain.ScheduleDoc{
		Employees:  in.Employees,
		FileName:   in.FileName,
		UploadedAt: uploadedAt,
	})
	if err != nil {
		return nil, err
	}

	if in.ReplaceAll {
		if err := s.assignments.Delete(ctx, date); err != nil {
			return nil, fmt.Errorf("clear assignments for %s: %w", date, err)
		}
	}
	return stored, nil
}

// put writes doc without validation or cascade. Used by imports.
func (s *Schedules) put(ctx context.Context, date string, doc domain.ScheduleDoc) (*domain.ScheduleDoc, error) {
	doc.LastUpdated = ""
	doc.Normalize()
	stored, err := s.docs.Put(ctx, date, doc)
	if err != nil {
		return nil, err
	}
	stored.Normalize()
	if err := s.mirror.offer(ctx, domain.CategorySchedules, date, stored); err != nil {
		return nil, err
	}
	publish(ctx, s.pub, domain.CategorySchedules, date, notify.ActionSaved)
	return stored, nil
}

// Get returns the roster for date, or an empty roster.
func (s *Schedules) Get(ctx context.Context, date string) (*domain.ScheduleDoc, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &domain.ScheduleDoc{}
	}
	doc.Normalize()
	return doc, nil
}

// List summarizes every stored roster, newest date first.
func (s *Schedules) List(ctx context.Context) ([]ScheduleSummary, error) {
	keys, err := s.docs.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduleSummary, 0, len(keys))
	for _, date := range sortDatesDesc(keys) {
		doc, err := s.docs.Get(ctx, date)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		out = append(out, ScheduleSummary{
			Date:          date,
			EmployeeCount: len(doc.Employees),
			FileName:      doc.FileName,
			UploadedAt:    doc.UploadedAt,
			LastUpdated:   doc.LastUpdated,
		})
	}
	return out, nil
}

package rosterservice

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDate is returned for date keys that are not YYYY-MM-DD calendar days.
	ErrInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")

	// ErrInvalidDayPart is returned for day-parts other than Breakfast or Lunch.
	ErrInvalidDayPart = errors.New("invalid dayPart, expected Breakfast or Lunch")

	// ErrInvalidPayload is returned when a document has the wrong shape.
	ErrInvalidPayload = errors.New("invalid payload")
)

// ValidationError is a rejected input. It never reaches storage.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s %q", e.Err, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

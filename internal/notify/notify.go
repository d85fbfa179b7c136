// Package notify fans document change notifications out to interested
// observers, including websocket clients of /api/events.
package notify

import (
	"time"

	"github.com/erauner12/shiftsync/internal/domain"
)

// Action describes what happened to a document.
type Action string

const (
	ActionSaved   Action = "saved"
	ActionDeleted Action = "deleted"
	ActionSynced  Action = "synced"
)

// Change is one document change.
type Change struct {
	Category domain.Category `json:"category"`
	Date     string          `json:"date"`
	Key      string          `json:"key,omitempty"`
	Action   Action          `json:"action"`
	Source   string          `json:"source,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher receives change notifications. Publish must not block.
type Publisher interface {
	Publish(Change)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Change)

func (f PublisherFunc) Publish(c Change) { f(c) }

// Discard drops every notification.
var Discard Publisher = PublisherFunc(func(Change) {})

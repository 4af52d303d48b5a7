package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// EventType classifies a participation ledger event.
type EventType string

const (
	EventEntry   EventType = "entry"
	EventReEntry EventType = "re-entry"
	EventExit    EventType = "exit"
)

// ParseEventType validates a raw event type string.
func ParseEventType(s string) (EventType, error) {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventEntry:
		return EventEntry, nil
	case EventReEntry:
		return EventReEntry, nil
	case EventExit:
		return EventExit, nil
	default:
		return "", fmt.Errorf("%w: event type %q", ErrInvalidEventType, s)
	}
}

// Active reports whether this event type leaves the wallet in the pot.
func (t EventType) Active() bool {
	return t == EventEntry || t == EventReEntry
}

// ParticipationEvent is one append-only ledger row. Events are immutable once
// written; for a wallet+contract the chronologically latest event defines
// current membership. History is only removed by an explicit administrative
// contract reset.
type ParticipationEvent struct {
	ID        int64
	Wallet    string
	Contract  string
	EventType EventType
	EventAt   time.Time
}

// EventDate is the UTC calendar date of the event, which is what eligibility
// projections compare against target dates.
func (e ParticipationEvent) EventDate() civil.Date {
	return civil.DateOf(e.EventAt.UTC())
}

// Package notify pushes engine announcements to operator channels. The
// dispatcher subscribes to the signal bus and turns settlement, outcome,
// re-entry and winner events into human-readable messages; the Notifier
// fans each message out to every configured sender (Telegram, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names carried on the signal bus payloads the dispatcher consumes.
const (
	EventSettlement = "settlement_completed"
	EventOutcome    = "outcome_provisional"
	EventDispute    = "outcome_disputed"
	EventReEntry    = "reentry_reconciled"
	EventWinners    = "winners_resolved"
)

// Sender delivers one message to one external channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans messages out to every registered sender, subject to an
// optional event-type allowlist. With an empty allowlist every event goes
// through; otherwise only the listed event types are delivered.
type Notifier struct {
	senders []Sender
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. events is the
// allowlist from configuration; leave it empty to forward everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders: senders,
		allowed: make(map[string]struct{}, len(events)),
		logger:  logger.With(slog.String("component", "notifier")),
	}
	for _, e := range events {
		n.allowed[strings.TrimSpace(e)] = struct{}{}
	}
	return n
}

// Notify delivers title/message to every sender if event passes the
// allowlist. Each sender gets its attempt even when an earlier one fails;
// the failures come back joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.wants(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		err := s.Send(ctx, title, message)
		if err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	return errors.Join(errs...)
}

func (n *Notifier) wants(event string) bool {
	if len(n.allowed) == 0 {
		return true
	}
	_, ok := n.allowed[event]
	return ok
}

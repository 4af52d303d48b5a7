package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// busChannels maps signal bus channels to the event types carried on them.
var busChannels = []string{"settlements", "outcomes", "reentries", "winners"}

// Dispatcher bridges the signal bus to the notification senders: it
// subscribes to the engine's event channels, renders each payload into an
// operator-readable announcement, and hands it to the Notifier.
type Dispatcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_dispatcher")),
	}
}

// Run consumes bus events until the context is cancelled. Individual send
// failures are logged and skipped; a dead Telegram bot must not stall
// settlement announcements on other channels.
func (d *Dispatcher) Run(ctx context.Context) error {
	for _, channel := range busChannels {
		ch, err := d.bus.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", channel, err)
		}
		go d.consume(ctx, channel, ch)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *Dispatcher) consume(ctx context.Context, channel string, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			d.handle(ctx, channel, payload)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, channel string, payload []byte) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		d.logger.WarnContext(ctx, "undecodable bus payload",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	event, _ := fields["event"].(string)
	if event == "" {
		return
	}

	title, message := renderEvent(event, fields)
	if title == "" {
		return
	}
	if err := d.notifier.Notify(ctx, event, title, message); err != nil {
		d.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// renderEvent formats a bus payload into an announcement. Unknown events
// return an empty title and are dropped.
func renderEvent(event string, f map[string]any) (title, message string) {
	switch event {
	case EventSettlement:
		title = fmt.Sprintf("Settlement: %s %s", str(f, "market_type"), str(f, "target_date"))
		lines := []string{
			fmt.Sprintf("Outcome: %s", str(f, "outcome")),
			fmt.Sprintf("Eliminated: %d of %d predictors (%d correct)",
				num(f, "eliminated"), num(f, "total_participants"), num(f, "correct_predictors")),
		}
		if b, _ := f["final_day"].(bool); b {
			lines = append(lines, "Final day: surviving predictions retained for winner resolution")
		}
		message = strings.Join(lines, "\n")
	case EventOutcome:
		title = fmt.Sprintf("Provisional outcome: %s %s", str(f, "market_type"), str(f, "date"))
		message = fmt.Sprintf("Outcome %s set provisionally; evidence window open until %s",
			str(f, "outcome"), str(f, "window_expires"))
	case EventDispute:
		title = fmt.Sprintf("Outcome disputed: %s %s", str(f, "market_type"), str(f, "date"))
		message = "Provisional outcome flagged for review before settlement"
	case EventReEntry:
		title = fmt.Sprintf("Re-entry: %s", str(f, "market_type"))
		message = fmt.Sprintf("Wallet %s restored (%d penalties cleared)",
			str(f, "wallet"), num(f, "penalties_cleared"))
	case EventWinners:
		title = fmt.Sprintf("Winners resolved: %s", str(f, "market_type"))
		message = fmt.Sprintf("%d winner(s) for pot %s", num(f, "winners"), str(f, "contract"))
	}
	return title, message
}

func str(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}

func num(f map[string]any, key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case []any:
		return len(v)
	default:
		return 0
	}
}

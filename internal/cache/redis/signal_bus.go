package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// subscribeBuffer bounds how far a slow consumer may fall behind before
// messages queue inside go-redis instead.
const subscribeBuffer = 128

// SignalBus carries engine events over Redis Pub/Sub. Services publish to
// the settlements, outcomes, reentries and winners channels; the websocket
// hub and the notification dispatcher subscribe.
type SignalBus struct {
	c *Client
}

// NewSignalBus returns a SignalBus sharing the given client's pool.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

// Publish sends payload to every current subscriber of channel. Delivery is
// fire-and-forget; a channel with no subscribers swallows the message.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on channel and returns the payload stream.
// Channels containing Redis glob characters use pattern subscription. The
// stream closes when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var sub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		sub = sb.c.rdb.PSubscribe(ctx, channel)
	} else {
		sub = sb.c.rdb.Subscribe(ctx, channel)
	}

	// Wait for the server's subscription ack so a broken subscription is an
	// error here instead of a silent stream.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go sb.pump(ctx, sub, out)
	return out, nil
}

// pump copies messages from the subscription into out until ctx ends.
func (sb *SignalBus) pump(ctx context.Context, sub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer sub.Close()

	in := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)

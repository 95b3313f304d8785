// Package notify broadcasts "reports updated" signals so that any open report
// listing can refresh when new exports exist for a ticket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "reports:"

// Event describes a change to the export records of a ticket.
type Event struct {
	TicketID  string    `json:"ticketId"`
	RecordID  string    `json:"recordId"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier publishes export events on a per-ticket channel.
type Notifier interface {
	ReportsUpdated(ctx context.Context, event Event) error
}

// RedisNotifier fans events out via Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier constructs a notifier.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// ReportsUpdated publishes the event on the ticket's channel. Publishing is
// best-effort: a failed broadcast is logged, not propagated, because the
// export record has already been persisted.
func (n *RedisNotifier) ReportsUpdated(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notify event: %w", err)
	}
	if err := n.client.Publish(ctx, channelPrefix+event.TicketID, payload).Err(); err != nil {
		n.logger.Sugar().Warnw("reports updated broadcast failed", "ticket_id", event.TicketID, "error", err)
	}
	return nil
}

// Subscribe returns a channel of events for the given ticket. The subscription
// closes when ctx is cancelled.
func (n *RedisNotifier) Subscribe(ctx context.Context, ticketID string) (<-chan Event, error) {
	sub := n.client.Subscribe(ctx, channelPrefix+ticketID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe reports channel: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.logger.Sugar().Warnw("drop malformed notify payload", "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Handler receives followed events
type Handler func(ctx context.Context, env Envelope) error

// Follower consumes events from the exchange through a private queue that
// lives as long as the follower.
type Follower struct {
	conn    *Connection
	pattern string
	logger  *slog.Logger
}

// NewFollower creates a follower for routing keys matching pattern. An empty
// pattern follows everything.
func NewFollower(conn *Connection, pattern string, logger *slog.Logger) *Follower {
	if pattern == "" {
		pattern = "#"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{conn: conn, pattern: pattern, logger: logger}
}

// Run delivers events to h until ctx is done or the channel closes.
// Malformed messages are rejected and skipped; a handler error stops Run.
func (f *Follower) Run(ctx context.Context, h Handler) error {
	ch := f.conn.Channel()

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare follow queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, f.pattern, f.conn.Exchange(), false, nil); err != nil {
		return fmt.Errorf("failed to bind follow queue: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	f.logger.Debug("following events", "queue", q.Name, "pattern", f.pattern)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				f.logger.Warn("malformed event", "routing_key", msg.RoutingKey, "error", err)
				_ = msg.Reject(false)
				continue
			}
			if err := h(ctx, env); err != nil {
				_ = msg.Nack(false, true)
				return err
			}
			_ = msg.Ack(false)
		}
	}
}

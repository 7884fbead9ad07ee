package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"jobboard/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// BoardChannel is the Redis pub/sub channel carrying board events.
const BoardChannel = "board:events"

// Notifier publishes board events. With Redis every instance sharing the
// channel receives the event; without it events go straight to the local hub.
type Notifier struct {
	rdb *redis.Client
	hub *Hub
}

// NewNotifier creates a Notifier. Either argument may be nil.
func NewNotifier(rdb *redis.Client, hub *Hub) *Notifier {
	return &Notifier{rdb: rdb, hub: hub}
}

// Publish encodes ev and delivers it.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if n.rdb == nil {
		if n.hub != nil {
			n.hub.Broadcast(payload)
		}
		return nil
	}
	return n.rdb.Publish(ctx, BoardChannel, payload).Err()
}

// Start subscribes to BoardChannel and forwards every message to the hub
// until ctx is cancelled. It returns once the subscription is confirmed.
func (n *Notifier) Start(ctx context.Context) error {
	if n.rdb == nil || n.hub == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, BoardChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", BoardChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in board subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					n.hub.Broadcast([]byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

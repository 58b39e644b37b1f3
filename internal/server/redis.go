package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardbid/auctioneer/internal/auction"
)

// NotifyChannel is the Redis pub/sub channel notifications travel on when
// several instances serve the same auction.
const NotifyChannel = "auction:notifications"

const notifyQueueSize = 256

// RedisNotifier publishes notifications to Redis instead of the local
// broker. Every instance, this one included, receives them through a Relay.
// Notifications are published in order by Run; when the queue is full new
// ones are dropped.
type RedisNotifier struct {
	publish func(ctx context.Context, payload []byte) error
	logger  *slog.Logger
	timeout time.Duration
	queue   chan queuedNote
}

type queuedNote struct {
	typ     string
	payload []byte
}

func NewRedisNotifier(rdb *redis.Client, logger *slog.Logger) *RedisNotifier {
	return newRedisNotifier(func(ctx context.Context, payload []byte) error {
		return rdb.Publish(ctx, NotifyChannel, payload).Err()
	}, logger)
}

func newRedisNotifier(publish func(context.Context, []byte) error, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		publish: publish,
		logger:  logger,
		timeout: 2 * time.Second,
		queue:   make(chan queuedNote, notifyQueueSize),
	}
}

// Notify queues note for Run and never blocks.
func (n *RedisNotifier) Notify(note auction.Notification) {
	data, err := json.Marshal(note)
	if err != nil {
		n.logger.Error("encoding notification", "type", note.Type, "error", err)
		return
	}
	select {
	case n.queue <- queuedNote{typ: note.Type, payload: data}:
	default:
		n.logger.Warn("notification queue full, dropping", "type", note.Type)
	}
}

// Run publishes queued notifications one at a time until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-n.queue:
			pctx, cancel := context.WithTimeout(ctx, n.timeout)
			err := n.publish(pctx, q.payload)
			cancel()
			if err != nil {
				n.logger.Warn("publishing notification", "type", q.typ, "error", err)
			}
		}
	}
}

// Relay copies notifications from Redis into the local broker until ctx
// is done.
func Relay(ctx context.Context, rdb *redis.Client, broker *Broker, logger *slog.Logger) error {
	sub := rdb.Subscribe(ctx, NotifyChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(m.Payload), &head); err != nil {
				logger.Warn("dropping malformed notification", "error", err)
				continue
			}
			broker.Publish(Message{Type: head.Type, Data: []byte(m.Payload)})
		}
	}
}

package realtime

import (
	"context"

	"safecircle/backend/internal/logging"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BroadcastChannel is the Redis channel global broadcasts travel on.
const BroadcastChannel = "realtime:broadcast"

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay shares global broadcasts between instances through Redis Pub/Sub.
// Messages published by this instance are filtered out on receipt.
type RedisRelay struct {
	rdb    *redis.Client
	origin string
	log    *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, log *zap.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:    rdb,
		origin: uuid.New().String(),
		log:    logging.OrNop(log),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(relayMessage{Origin: r.origin, Event: ev})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// Subscribe returns events published by other instances until ctx is canceled.
func (r *RedisRelay) Subscribe(ctx context.Context) <-chan Event {
	pubsub := r.rdb.Subscribe(ctx, BroadcastChannel)
	out := make(chan Event)

	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			ev, ok := r.decode(msg.Payload)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (r *RedisRelay) decode(payload string) (Event, bool) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.log.Warn("relay message decode failed", zap.Error(err))
		return Event{}, false
	}
	if m.Origin == r.origin {
		return Event{}, false
	}
	return m.Event, true
}

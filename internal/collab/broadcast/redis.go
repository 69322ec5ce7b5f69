package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	console "github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

var log = console.New("BROADCAST")

const channelPrefix = "collab:"

// RedisBroadcaster implements Broadcaster over Redis pub/sub. Each room maps
// to one channel; ordering is per-publisher only, which matches the layer's
// ordering guarantees.
type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, room string, msg Message) error {
	msg.Room = room
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelPrefix+room, raw).Err()
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, room string, h Handler) (Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, channelPrefix+room)

	// Force the subscription onto the wire before returning so the caller
	// never misses messages published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for m := range pubsub.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Warn("Dropping malformed broadcast on %s: %v", room, err)
				continue
			}
			h(msg)
		}
	}()

	return sub, nil
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}

func (s *redisSubscription) Done() <-chan struct{} {
	return s.done
}

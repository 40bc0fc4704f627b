package service

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/vocab-runner/internal/config"
)

// EventBus fans session events out to live stream subscribers.
type EventBus interface {
	Publish(ctx context.Context, sessionID string, payload []byte) error
	// Subscribe returns a channel of raw JSON payloads and a cancel func.
	Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func())
}

// RedisEventBus publishes over Redis Pub/Sub so any runner instance can
// serve a session's stream.
type RedisEventBus struct {
	rdb *redis.Client
}

// NewRedisEventBus creates a new RedisEventBus.
func NewRedisEventBus(rdb *redis.Client) *RedisEventBus {
	return &RedisEventBus{rdb: rdb}
}

func (b *RedisEventBus) Publish(ctx context.Context, sessionID string, payload []byte) error {
	return b.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(sessionID), payload).Err()
}

func (b *RedisEventBus) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func()) {
	pubsub := b.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(sessionID))
	out := make(chan []byte, 32)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					// Slow subscriber: ticks are superseded by the next one.
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
}

// LocalEventBus delivers events within the process.
type LocalEventBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewLocalEventBus creates a new LocalEventBus.
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *LocalEventBus) Publish(_ context.Context, sessionID string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *LocalEventBus) Subscribe(_ context.Context, sessionID string) (<-chan []byte, func()) {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

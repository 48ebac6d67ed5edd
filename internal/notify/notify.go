// Package notify fans live updates out to UI-facing subscribers. The core
// stays synchronous; adapters publish here after a successful operation.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Update describes one observable change.
type Update struct {
	// Kind is "scan" or "session".
	Kind        string    `json:"kind"`
	SessionID   string    `json:"session_id"`
	CardNumber  string    `json:"card_number,omitempty"`
	ProfileName string    `json:"profile_name,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier publishes updates to whoever is watching. Implementations must
// not block the caller on slow subscribers.
type Notifier interface {
	Publish(ctx context.Context, update Update) error
}

// Noop discards every update.
type Noop struct{}

// Publish implements Notifier.
func (Noop) Publish(ctx context.Context, update Update) error { return nil }

// Broadcast is an in-process notifier: subscribers receive updates on
// buffered channels, and a full channel drops the update rather than
// blocking the publisher.
type Broadcast struct {
	mu   sync.Mutex
	subs []chan Update
}

// NewBroadcast creates an empty in-process notifier.
func NewBroadcast() *Broadcast {
	return &Broadcast{}
}

// Subscribe registers a listener and returns its channel.
func (b *Broadcast) Subscribe(buffer int) <-chan Update {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Update, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish implements Notifier.
func (b *Broadcast) Publish(ctx context.Context, update Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

// RedisNotifier publishes updates on a Redis pub/sub channel so any number
// of UI processes can subscribe.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier on the given channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "rfidtrack:updates"
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Publish implements Notifier.
func (n *RedisNotifier) Publish(ctx context.Context, update Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// Log wraps a notifier, logging failures instead of returning them; live
// updates are best-effort and must never fail the triggering operation.
func Log(n Notifier) Notifier {
	return logged{inner: n}
}

type logged struct {
	inner Notifier
}

func (l logged) Publish(ctx context.Context, update Update) error {
	if err := l.inner.Publish(ctx, update); err != nil {
		log.Printf("notify publish failed: %v", err)
	}
	return nil
}

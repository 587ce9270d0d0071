package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Bus carries envelopes between instances. Every instance subscribes and
// delivers to its own hub, including the publisher.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, onEnvelope func(Envelope)) error
	Close() error
}

// NewBus picks the transport by kind: "nats", "redis" or "local".
func NewBus(kind string, nc *nats.Conn, rdb *redis.Client) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "nats":
		if nc != nil {
			return NewNATSBus(nc, DefaultSubjectPrefix), nil
		}
		if kind != "" {
			return nil, errors.New("realtime: nats bus requested without a nats connection")
		}
		return NewLocalBus(), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("realtime: redis bus requested without a redis client")
		}
		return NewRedisBus(rdb, DefaultRedisChannel), nil
	case "local":
		return NewLocalBus(), nil
	default:
		return nil, fmt.Errorf("realtime: unknown bus %q", kind)
	}
}

// ---------------------------------------------------------------------------
// Local
// ---------------------------------------------------------------------------

// LocalBus delivers in process.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []func(Envelope)
}

func NewLocalBus() *LocalBus { return &LocalBus{} }

func (b *LocalBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, onEnvelope func(Envelope)) error {
	if onEnvelope == nil {
		return errors.New("realtime: handler required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, onEnvelope)
	return nil
}

func (b *LocalBus) Close() error { return nil }

// ---------------------------------------------------------------------------
// NATS
// ---------------------------------------------------------------------------

// DefaultSubjectPrefix is followed by the room name.
const DefaultSubjectPrefix = "dealer.rt"

type NATSBus struct {
	nc     *nats.Conn
	prefix string

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNATSBus(nc *nats.Conn, prefix string) *NATSBus {
	return &NATSBus{nc: nc, prefix: prefix}
}

func (b *NATSBus) subject(room string) string {
	return b.prefix + "." + room
}

func (b *NATSBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject(env.Room), raw)
}

func (b *NATSBus) Subscribe(ctx context.Context, onEnvelope func(Envelope)) error {
	if onEnvelope == nil {
		return errors.New("realtime: handler required")
	}
	sub, err := b.nc.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Warn("realtime: bad envelope on nats", "subject", msg.Subject, "error", err)
			return
		}
		onEnvelope(env)
	})
	if err != nil {
		return fmt.Errorf("realtime: nats subscribe: %w", err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, s := range b.subs {
		if err := s.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

const DefaultRedisChannel = "dealer:rt"

type RedisBus struct {
	rdb     *redis.Client
	channel string

	mu   sync.Mutex
	subs []*redis.PubSub
}

func NewRedisBus(rdb *redis.Client, channel string) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, onEnvelope func(Envelope)) error {
	if onEnvelope == nil {
		return errors.New("realtime: handler required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("realtime: redis subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for msg := range sub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("realtime: bad envelope on redis", "channel", msg.Channel, "error", err)
				continue
			}
			onEnvelope(env)
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, s := range b.subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

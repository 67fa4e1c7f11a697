package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

// DefaultBusChannel is the redis pub/sub channel shared by all instances.
const DefaultBusChannel = "chat:fanout"

// BusOptions tunes a RedisBus. Zero values take defaults.
type BusOptions struct {
	Channel     string
	Outbox      int           // queued envelopes awaiting publish
	MaxTries    uint          // publish attempts per envelope
	MaxInterval time.Duration // cap of the retry backoff
	BreakerName string
}

// RedisBus relays hub envelopes between instances over redis pub/sub.
//
// Publish only queues; Serve drains the queue and runs the subscription.
// A publish that keeps failing is logged and dropped: the message is
// already stored, and clients catch up from history and the next unread
// push.
type RedisBus struct {
	client redis.UniversalClient
	hub    *Hub
	opts   BusOptions
	outbox chan Envelope
	cb     *gobreaker.CircuitBreaker[any]
}

// NewRedisBus wires a bus to hub. Call hub.SetRelay(bus) to start
// relaying local events.
func NewRedisBus(client redis.UniversalClient, hub *Hub, opts BusOptions) *RedisBus {
	if opts.Channel == "" {
		opts.Channel = DefaultBusChannel
	}
	if opts.Outbox <= 0 {
		opts.Outbox = 1024
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = time.Second
	}
	if opts.BreakerName == "" {
		opts.BreakerName = "redis-fanout"
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.BreakerName,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("component", "realtime").Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).Msg("fan-out breaker state changed")
		},
	})
	return &RedisBus{
		client: client,
		hub:    hub,
		opts:   opts,
		outbox: make(chan Envelope, opts.Outbox),
		cb:     cb,
	}
}

// Publish queues env for the other instances without blocking.
func (b *RedisBus) Publish(env Envelope) {
	select {
	case b.outbox <- env:
	default:
		busPublishes.WithLabelValues("dropped").Inc()
		log.Warn().Str("component", "realtime").Msg("fan-out outbox full, envelope dropped")
	}
}

// Serve subscribes to the bus channel and drains the outbox until ctx is
// done. It implements suture.Service.
func (b *RedisBus) Serve(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.opts.Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	in := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-b.outbox:
			b.send(ctx, env)
		case msg, ok := <-in:
			if !ok {
				return errors.New("fan-out subscription closed")
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("component", "realtime").Msg("bad fan-out envelope")
				continue
			}
			b.hub.Deliver(env)
		}
	}
}

// String names the service in supervisor logs.
func (b *RedisBus) String() string { return "redis-fanout" }

func (b *RedisBus) send(ctx context.Context, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		busPublishes.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("component", "realtime").Msg("encode fan-out envelope")
		return
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 50 * time.Millisecond
	expo.MaxInterval = b.opts.MaxInterval

	_, err = backoff.Retry(ctx, func() (any, error) {
		out, err := b.cb.Execute(func() (any, error) {
			return nil, b.client.Publish(ctx, b.opts.Channel, data).Err()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(b.opts.MaxTries))
	if err != nil {
		busPublishes.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("component", "realtime").Msg("fan-out publish failed, dropped")
		return
	}
	busPublishes.WithLabelValues("ok").Inc()
}

var _ Relay = (*RedisBus)(nil)

// Package server assembles the chat backend into a supervised process: the
// HTTP API, the cross-instance fan-out relay, the thumbnail worker and the
// housekeeping loops each run as a suture service.
package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
)

// TreeConfig holds supervisor tree configuration. Zero values take the
// suture defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Tree is the process supervisor. Services are grouped in layers so a
// crash looping worker never takes the API down with it:
//   - background: idempotency purge, thumbnail worker
//   - messaging: redis fan-out relay
//   - api: HTTP server
type Tree struct {
	root       *suture.Supervisor
	background *suture.Supervisor
	messaging  *suture.Supervisor
	api        *suture.Supervisor
}

// NewTree builds an empty tree.
func NewTree(cfg TreeConfig) *Tree {
	cfg = cfg.withDefaults()

	rootSpec := suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	t := &Tree{
		root:       suture.New("go-chat-rooms", rootSpec),
		background: suture.New("background-layer", childSpec),
		messaging:  suture.New("messaging-layer", childSpec),
		api:        suture.New("api-layer", childSpec),
	}
	t.root.Add(t.background)
	t.root.Add(t.messaging)
	t.root.Add(t.api)
	return t
}

// AddBackground adds a housekeeping or worker service.
func (t *Tree) AddBackground(svc suture.Service) suture.ServiceToken { return t.background.Add(svc) }

// AddMessaging adds a realtime relay service.
func (t *Tree) AddMessaging(svc suture.Service) suture.ServiceToken { return t.messaging.Add(svc) }

// AddAPI adds an HTTP-facing service.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken { return t.api.Add(svc) }

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error { return t.root.ServeBackground(ctx) }

func logEvent(e suture.Event) {
	ev := log.Warn()
	if e.Type() == suture.EventTypeServicePanic {
		ev = log.Error()
	}
	ev.Str("component", "supervisor").Msg(e.String())
}

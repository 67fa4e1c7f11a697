package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/repo"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under supervision and shuts it down
// gracefully when its context ends.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. shutdownTimeout <= 0 means 10s.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The serve context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// IdempotencyPurger deletes expired idempotency records on an interval.
type IdempotencyPurger struct {
	DB       *gorm.DB
	Interval time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Serve implements suture.Service.
func (p *IdempotencyPurger) Serve(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := p.PurgeOnce(ctx); err != nil {
				// Transient; the next tick tries again.
				log.Warn().Err(err).Str("component", "idempotency").Msg("purge failed")
			}
		}
	}
}

// PurgeOnce runs a single purge and returns the number of removed records.
func (p *IdempotencyPurger) PurgeOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	n, err := repo.PurgeExpiredIdempotency(ctx, p.DB, now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Debug().Str("component", "idempotency").Int64("purged", n).Msg("expired keys removed")
	}
	return n, nil
}

func (p *IdempotencyPurger) String() string { return "idempotency-purger" }

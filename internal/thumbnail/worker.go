package thumbnail

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

// Attacher records a generated thumbnail on its upload.
type Attacher interface {
	AttachThumbnail(ctx context.Context, uploadID, key string) error
}

// Worker handles thumbnail tasks.
type Worker struct {
	DB        *gorm.DB
	Generator Generator
	Uploads   Attacher
}

// Handle processes one task. Jobs for uploads that are gone, already have
// a thumbnail, or were rejected by the generator end without retry.
func (w *Worker) Handle(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.UploadID == "" {
		return fmt.Errorf("thumbnail: bad payload %q: %w", t.Payload(), asynq.SkipRetry)
	}
	lg := log.With().Str("component", "thumbnail").Str("upload_id", p.UploadID).Logger()

	f, err := repo.GetUpload(ctx, w.DB, p.UploadID)
	if errors.Is(err, repo.ErrNotFound) {
		lg.Debug().Msg("upload gone, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if !f.Kind.Thumbnailable() || f.ThumbnailKey != nil {
		return nil
	}

	key, err := w.Generator.Generate(ctx, *f)
	if errors.Is(err, ErrRejected) {
		lg.Warn().Err(err).Msg("thumbnail rejected")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if err := w.Uploads.AttachThumbnail(ctx, f.ID, key); err != nil {
		if errors.Is(err, services.ErrUploadNotFound) {
			return nil
		}
		return err
	}
	lg.Info().Str("thumbnail_key", key).Msg("thumbnail attached")
	return nil
}

// Mux routes thumbnail tasks to w.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerate, w.Handle)
	return mux
}

// Server runs the worker. It implements suture.Service; every Serve call
// builds a fresh asynq server so a restart after a failure starts clean.
type Server struct {
	opt         asynq.RedisConnOpt
	concurrency int
	mux         *asynq.ServeMux
}

// NewServer returns a worker server consuming QueueName.
func NewServer(opt asynq.RedisConnOpt, concurrency int, w *Worker) *Server {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Server{opt: opt, concurrency: concurrency, mux: w.Mux()}
}

// Serve starts the asynq server and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := asynq.NewServer(s.opt, asynq.Config{
		Concurrency: s.concurrency,
		Queues:      map[string]int{QueueName: 1},
		Logger:      zerologAdapter{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			log.Warn().Err(err).Str("component", "thumbnail").Str("task", t.Type()).Msg("task failed")
		}),
	})
	if err := srv.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Shutdown()
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Server) String() string { return "thumbnail-worker" }

// zerologAdapter routes asynq's internal logging to zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Debug(args ...any) {
	log.Debug().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (zerologAdapter) Info(args ...any) {
	log.Info().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (zerologAdapter) Warn(args ...any) {
	log.Warn().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (zerologAdapter) Error(args ...any) {
	log.Error().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (zerologAdapter) Fatal(args ...any) {
	log.Fatal().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

var _ services.ThumbnailQueue = (*Queue)(nil)

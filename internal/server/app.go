package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/blob"
	"github.com/tbourn/go-chat-rooms/internal/config"
	httpapi "github.com/tbourn/go-chat-rooms/internal/http"
	"github.com/tbourn/go-chat-rooms/internal/http/handlers"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/presence"
	"github.com/tbourn/go-chat-rooms/internal/realtime"
	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/services"
	"github.com/tbourn/go-chat-rooms/internal/thumbnail"
)

// presencePrefix namespaces presence keys in a shared redis.
const presencePrefix = "chat:presence:"

// App is a fully wired process: storage, realtime, services and routes.
type App struct {
	Config config.Config
	DB     *gorm.DB
	Engine *gin.Engine
	Hub    *realtime.Hub
	Tree   *Tree

	closers []func() error
}

// Build wires every component from cfg. Without a redis URL presence and
// fan-out stay in-process and thumbnails are not generated.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	db, err := repo.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewDisk(cfg.Media.UploadDir, cfg.Media.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	app.Hub = realtime.NewHub()
	app.Tree = NewTree(TreeConfig{ShutdownTimeout: cfg.WriteTimeout})

	var tracker presence.Tracker = presence.NewMemory(cfg.Realtime.PresenceTTL)
	uploads := &services.UploadService{DB: db, Blobs: blobs, MaxBytes: cfg.Media.MaxUploadBytes}

	if cfg.Realtime.RedisURL != "" {
		rdb, err := presence.Dial(ctx, cfg.Realtime.RedisURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		tracker = presence.NewRedis(rdb, cfg.Realtime.PresenceTTL, presencePrefix)

		bus := realtime.NewRedisBus(rdb, app.Hub, realtime.BusOptions{})
		app.Hub.SetRelay(bus)
		app.Tree.AddMessaging(bus)

		q, worker, err := thumbnailPipeline(cfg, db, uploads)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, q.Close)
		uploads.Thumbnails = q
		if worker != nil {
			app.Tree.AddBackground(worker)
		}
	} else {
		log.Info().Msg("REDIS_URL not set: presence and fan-out are in-process, thumbnails disabled")
	}

	filter := services.NewWordFilter(cfg.ProfanityWords...)
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	h := handlers.New(handlers.Deps{
		Rooms:   services.NewRoomService(db),
		Members: &services.MembershipService{DB: db},
		Messages: &services.MessageService{
			DB:             db,
			Presence:       tracker,
			Notifier:       app.Hub,
			Filter:         filter,
			MaxTextRunes:   cfg.MaxTextRunes,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Uploads:           uploads,
		Predefined:        &services.PredefinedService{DB: db, Filter: filter},
		Reports:           &services.ReportService{DB: db},
		Hub:               app.Hub,
		Presence:          tracker,
		Limiter:           limiter,
		Verifier:          verifier,
		SyncUser:          httpapi.SyncUser(db),
		Upgrader:          handlers.NewUpgrader(cfg.Realtime.AllowedOrigins),
		Conn:              realtime.ConnOptions{SendBuffer: cfg.Realtime.SendBuffer},
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.Deps{DB: db, Handlers: h, Verifier: verifier, Limiter: limiter})
	app.Engine = r

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// Sockets and event streams manage their own write deadlines.
		WriteTimeout:   0,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	app.Tree.AddAPI(NewHTTPService(srv, cfg.WriteTimeout))
	app.Tree.AddBackground(&IdempotencyPurger{DB: db, Interval: purgeInterval(cfg.IdempotencyTTL)})

	ok = true
	return app, nil
}

// thumbnailPipeline returns the task queue and, when a generator is
// configured, the worker consuming it.
func thumbnailPipeline(cfg config.Config, db *gorm.DB, uploads *services.UploadService) (*thumbnail.Queue, *thumbnail.Server, error) {
	opt, err := thumbnail.ParseRedisURL(cfg.Realtime.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	q := thumbnail.NewQueue(asynq.NewClient(opt), cfg.Media.ThumbnailMaxRetry)
	if cfg.Media.ThumbnailURL == "" {
		log.Info().Msg("THUMBNAIL_URL not set: thumbnail tasks are queued but not consumed here")
		return q, nil, nil
	}
	w := &thumbnail.Worker{DB: db, Generator: thumbnail.NewHTTPGenerator(cfg.Media.ThumbnailURL), Uploads: uploads}
	return q, thumbnail.NewServer(opt, cfg.Media.AsynqConcurrency, w), nil
}

// purgeInterval spreads purges over the key lifetime.
func purgeInterval(ttl time.Duration) time.Duration {
	iv := ttl / 12
	if iv < time.Minute {
		return time.Minute
	}
	return iv
}

// Run serves until ctx is cancelled, then releases resources.
func (a *App) Run(ctx context.Context) error {
	err := a.Tree.Serve(ctx)
	if cerr := a.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close resources")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the connections opened by Build, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

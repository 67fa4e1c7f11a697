// Package config loads the chat server settings from the environment.
//
// Load reads every key once, falls back to a default only when the key is
// unset or empty, and reports malformed values and failed constraints
// together so an operator can fix a deployment in one pass.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the origins allowed to call the REST API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig configures the bearer token verifier.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET (HS256, >= 32 bytes)
	Issuer    string        // JWT_ISSUER, checked when non-empty
	TokenTTL  time.Duration // JWT_TTL, lifetime of tokens minted by IssueToken
}

// RealtimeConfig configures websocket fan-out and presence.
type RealtimeConfig struct {
	RedisURL          string        // REDIS_URL; empty keeps presence and fan-out in-process
	PresenceTTL       time.Duration // PRESENCE_TTL, ghost bound for a dead connection
	HeartbeatInterval time.Duration // PRESENCE_HEARTBEAT, must be < PresenceTTL
	AllowedOrigins    []string      // WS_ALLOWED_ORIGINS; empty accepts any origin
	SendBuffer        int           // WS_SEND_BUFFER, per-connection queued frames
}

// MediaConfig configures uploads, blob storage and thumbnails.
type MediaConfig struct {
	UploadDir         string // UPLOAD_DIR, root of the disk blob store
	BaseURL           string // MEDIA_BASE_URL, public prefix for blob keys
	MaxUploadBytes    int64  // MAX_UPLOAD_BYTES
	ThumbnailURL      string // THUMBNAIL_URL, external thumbnail generator
	AsynqConcurrency  int    // ASYNQ_CONCURRENCY
	ThumbnailMaxRetry int    // THUMBNAIL_MAX_RETRY
}

// Config is the full process configuration.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN when DBDriver=postgres

	// Messaging
	ProfanityWords []string // PROFANITY_WORDS, extra words for the content filter
	MaxTextRunes   int      // MAX_TEXT_RUNES

	// Rate limiting, shared by REST calls and socket frames
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL is how long a replayed message send is recognized.
	IdempotencyTTL time.Duration

	Auth     AuthConfig
	Realtime RealtimeConfig
	Media    MediaConfig
	OTEL     OTELConfig
}

// MustLoad is Load for tools that cannot continue without a config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, normalizes aliases and validates the result.
// The returned error joins every problem found.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.num("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBDriver:    strings.ToLower(e.str("DB_DRIVER", "sqlite")),
		DBPath:      e.str("DB_PATH", "app.db"),
		DatabaseURL: e.str("DATABASE_URL", ""),

		ProfanityWords: e.list("PROFANITY_WORDS"),
		MaxTextRunes:   e.num("MAX_TEXT_RUNES", 4000),

		RateRPS:   e.real("RATE_RPS", 5.0),
		RateBurst: e.num("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Auth: AuthConfig{
			JWTSecret: e.str("JWT_SECRET", ""),
			Issuer:    e.str("JWT_ISSUER", ""),
			TokenTTL:  e.dur("JWT_TTL", 24*time.Hour),
		},
		Realtime: RealtimeConfig{
			RedisURL:          e.str("REDIS_URL", ""),
			PresenceTTL:       e.dur("PRESENCE_TTL", 90*time.Second),
			HeartbeatInterval: e.dur("PRESENCE_HEARTBEAT", 30*time.Second),
			AllowedOrigins:    e.list("WS_ALLOWED_ORIGINS"),
			SendBuffer:        e.num("WS_SEND_BUFFER", 128),
		},
		Media: MediaConfig{
			UploadDir:         e.str("UPLOAD_DIR", "media"),
			BaseURL:           strings.TrimRight(e.str("MEDIA_BASE_URL", "/media"), "/"),
			MaxUploadBytes:    int64(e.num("MAX_UPLOAD_BYTES", 30<<20)),
			ThumbnailURL:      e.str("THUMBNAIL_URL", ""),
			AsynqConcurrency:  e.num("ASYNQ_CONCURRENCY", 4),
			ThumbnailMaxRetry: e.num("THUMBNAIL_MAX_RETRY", 5),
		},
		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-chat-rooms"),
			SampleRatio: e.real("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, errors.Join(append(e.errs, cfg.Validate())...)
}

// Validate checks cross-field constraints. It does not touch the
// environment, so tests and embedders can validate a hand-built Config.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(c.MaxTextRunes > 0, "MAX_TEXT_RUNES must be > 0")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")

	errs = append(errs, c.Auth.validate(), c.Realtime.validate(), c.Media.validate(), c.OTEL.validate())
	return errors.Join(errs...)
}

func (a AuthConfig) validate() error {
	var errs []error
	if len(a.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if a.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be > 0"))
	}
	return errors.Join(errs...)
}

func (r RealtimeConfig) validate() error {
	if r.PresenceTTL <= 0 || r.HeartbeatInterval <= 0 {
		return errors.New("PRESENCE_TTL and PRESENCE_HEARTBEAT must be positive durations")
	}
	var errs []error
	// A live socket must refresh its presence before the entry expires.
	if r.HeartbeatInterval >= r.PresenceTTL {
		errs = append(errs, errors.New("PRESENCE_HEARTBEAT must be shorter than PRESENCE_TTL"))
	}
	if r.SendBuffer < 1 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be >= 1"))
	}
	return errors.Join(errs...)
}

func (m MediaConfig) validate() error {
	var errs []error
	if strings.TrimSpace(m.UploadDir) == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}
	if m.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be > 0"))
	}
	if m.AsynqConcurrency < 1 {
		errs = append(errs, errors.New("ASYNQ_CONCURRENCY must be >= 1"))
	}
	if m.ThumbnailMaxRetry < 0 {
		errs = append(errs, errors.New("THUMBNAIL_MAX_RETRY must be >= 0"))
	}
	return errors.Join(errs...)
}

func (o OTELConfig) validate() error {
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if o.Enabled && strings.TrimSpace(o.Endpoint) == "" {
		return errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED")
	}
	return nil
}

// env reads typed values and records every malformed one.
type env struct {
	errs []error
}

// lookup returns the raw value; unset and empty are the same.
func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return v, ok && v != ""
}

func (e *env) bad(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a valid %s", k, v, want))
}

func (e *env) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *env) num(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.bad(k, v, "integer")
		return def
	}
	return n
}

func (e *env) real(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.bad(k, v, "number")
		return def
	}
	return f
}

func (e *env) flag(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(k, v, "boolean")
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.bad(k, v, "duration")
		return def
	}
	return d
}

// list splits a comma separated value, dropping blanks.
func (e *env) list(k string) []string {
	v, ok := e.lookup(k)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, except
// for the root.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}

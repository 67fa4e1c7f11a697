// Package httpapi wires the HTTP transport (Gin) to the handlers and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, compression,
// CORS, security headers, authentication, idempotency and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/docs"
	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/config"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/http/handlers"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

// defaultBodyLimit caps JSON bodies; uploads use the media limit instead.
const defaultBodyLimit = 1 << 20

// wsRoute is the room channel route pattern.
const wsRoute = "/ws/chat/:room_id/"

// Deps are the collaborators mounted by RegisterRoutes.
type Deps struct {
	DB       *gorm.DB
	Handlers *handlers.Handlers
	Verifier middleware.TokenVerifier
	// Limiter meters API requests. The same limiter should be handed to the
	// handlers so socket frames share the caller's budget.
	Limiter *middleware.RateLimiter
}

// SyncUser returns a middleware.UserSync that upserts the verified
// principal into the users table.
func SyncUser(db *gorm.DB) middleware.UserSync {
	return func(ctx context.Context, p auth.Principal) error {
		return repo.UpsertUser(ctx, db, &domain.User{ID: p.ID, Username: p.Username, IsStaff: p.IsStaff})
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics (long-lived routes excluded from latency)
//  7. Gzip (streams and sockets excluded)
//  8. CORS and Security headers
//
// API routes then run Authenticate → IdempotencyValidator → rate limiter, so
// replays bypass the limiter and limits are keyed per user.
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath
	streamRoute := strings.TrimRight(apiBase, "/") + "/unread/stream"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		QuietPaths:  []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limits
	uploadRoute := strings.TrimRight(apiBase, "/") + "/uploads"
	r.Use(limitBody(defaultBodyLimit, uploadRoute, cfg.Media.MaxUploadBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(wsRoute, streamRoute))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; event streams and sockets must not be buffered
	excluded := []string{"/ws/", streamRoute, "/metrics"}
	if mediaMounted(cfg.Media.BaseURL) {
		excluded = append(excluded, cfg.Media.BaseURL+"/")
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(excluded)))

	// 8) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers; room data is never cached and uploads are sandboxed
	secOpts := middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		PrivatePrefixes: []string{apiBase, "/ws/"},
		DocsPrefix:      "/swagger",
	}
	if mediaMounted(cfg.Media.BaseURL) {
		secOpts.MediaPrefix = cfg.Media.BaseURL
	}
	r.Use(middleware.SecurityHeaders(secOpts))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if mediaMounted(cfg.Media.BaseURL) {
		r.Static(cfg.Media.BaseURL, cfg.Media.UploadDir)
	}

	h := d.Handlers

	// The socket authenticates itself so refusals use a close code.
	r.GET(wsRoute, h.ChatSocket)

	api := groupWithPrefix(r, apiBase)
	api.Use(
		middleware.Authenticate(d.Verifier, SyncUser(d.DB), middleware.AuthOptions{AllowQueryToken: true}),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 128},
			func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error) {
				rec, err := repo.GetIdempotency(ctx, d.DB, userID, roomID, key, now)
				if errors.Is(err, repo.ErrNotFound) {
					return false, nil
				}
				return rec != nil, err
			},
		),
		d.Limiter.Handler(),
	)
	{
		// Rooms
		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms/tickets", h.CreateTicket)
		api.POST("/rooms/private", h.CreatePrivateChat)
		api.POST("/rooms/groups", h.CreateGroup)
		api.GET("/rooms/top", h.TopGroups)
		api.GET("/rooms/search", h.SearchGroups)
		api.GET("/rooms/:room_id", h.GetRoom)
		api.PATCH("/rooms/:room_id/ticket", h.UpdateTicket)
		api.PATCH("/rooms/:room_id/group", h.UpdateGroup)
		api.POST("/rooms/:room_id/close", h.CloseRoom)
		api.POST("/rooms/:room_id/lock", h.LockRoom)
		api.POST("/rooms/:room_id/unlock", h.UnlockRoom)
		api.POST("/rooms/:room_id/open", h.OpenRoom)
		api.POST("/rooms/:room_id/staff", h.AssignStaff)

		// Members
		api.GET("/rooms/:room_id/members", h.ListMembers)
		api.POST("/rooms/:room_id/members", h.AddMember)
		api.DELETE("/rooms/:room_id/members/:user_id", h.RemoveMember)
		api.POST("/rooms/:room_id/members/:user_id/promote", h.PromoteMember)
		api.POST("/rooms/:room_id/members/:user_id/demote", h.DemoteMember)
		api.PUT("/rooms/:room_id/members/:user_id/permissions", h.SetMemberPermissions)
		api.GET("/rooms/:room_id/permissions", h.MyPermissions)
		api.POST("/rooms/:room_id/join", h.JoinGroup)
		api.POST("/rooms/:room_id/leave", h.LeaveRoom)

		// Messages
		api.POST("/rooms/:room_id/messages", h.PostMessage)
		api.GET("/rooms/:room_id/messages", h.ListMessages)
		api.POST("/rooms/:room_id/seen", h.MarkSeen)
		api.GET("/rooms/:room_id/offset", h.MessageOffset)
		api.GET("/unread", h.UnreadSummary)
		api.GET("/unread/stream", h.UnreadStream)

		// Reports
		api.POST("/messages/:message_id/report", h.ReportMessage)
		api.GET("/rooms/:room_id/reports", h.ListReports)

		// Uploads and canned messages
		api.POST("/uploads", h.UploadFile)
		api.GET("/uploads/:upload_id", h.GetUpload)
		api.GET("/predefined", h.ListPredefined)
		api.POST("/predefined", h.CreatePredefined)
		api.GET("/predefined/:id", h.GetPredefined)
		api.PUT("/predefined/:id", h.UpdatePredefined)
		api.DELETE("/predefined/:id", h.DeletePredefined)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests to uploadPath get uploadMax
// instead. Requests exceeding the cap will cause downstream body reads to
// error.
func limitBody(maxBytes int64, uploadPath string, uploadMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if uploadMax > 0 && c.Request.URL.Path == uploadPath {
			// Multipart framing on top of the file itself.
			limit = uploadMax + 64<<10
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// mediaMounted reports whether base is a local path to serve blobs from.
func mediaMounted(base string) bool {
	return strings.HasPrefix(base, "/") && len(base) > 1
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

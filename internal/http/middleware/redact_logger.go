package middleware

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

// RedactOptions extends the built-in masks of RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are logged as [REDACTED], in addition to Authorization,
	// Cookie and Set-Cookie. Case-insensitive.
	MaskHeaders []string
	// MaskQuery are query parameters logged as [REDACTED], in addition to
	// token and access_token. Case-insensitive.
	MaskQuery []string
	// QuietPaths are route patterns (probes, scrapes) whose successful
	// requests log at debug.
	QuietPaths []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so the hex groups of a UUID cannot match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub replaces identifiers and contact details in s. UUIDs go first so
// the phone pattern never sees their digit groups.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// nameSet lower-cases and trims names, dropping blanks.
func nameSet(lists ...[]string) map[string]bool {
	m := make(map[string]bool)
	for _, l := range lists {
		for _, v := range l {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				m[v] = true
			}
		}
	}
	return m
}

type redactor struct {
	headers map[string]bool
	query   map[string]bool
}

func newRedactor(opts RedactOptions) redactor {
	return redactor{
		headers: nameSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders),
		query:   nameSet([]string{"token", "access_token"}, opts.MaskQuery),
	}
}

// rawQuery masks credential parameters and scrubs the other values. The
// result is sorted by key and left unescaped for readability.
func (r redactor) rawQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k, vv := range vals {
		secret := r.query[strings.ToLower(k)]
		for i, v := range vv {
			if secret {
				vv[i] = redacted
			} else {
				vv[i] = scrub(v)
			}
		}
	}
	out, _ := url.QueryUnescape(vals.Encode())
	return out
}

// headerDict renders the request headers with masks applied.
func (r redactor) headerDict(h map[string][]string) *zerolog.Event {
	d := zerolog.Dict()
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		if r.headers[strings.ToLower(k)] {
			d.Str(k, redacted)
			continue
		}
		d.Str(k, scrub(strings.Join(h[k], ", ")))
	}
	return d
}

// RedactingLogger writes one access line per request and attaches the
// request-scoped logger returned by LoggerFrom. Bodies are never logged;
// credentials are masked and identifiers scrubbed from the query and
// headers. The level is error for 5xx or handler errors and warn for 4xx,
// otherwise info.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)
	quiet := nameSet(opts.QuietPaths)

	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		rid := firstNonEmpty(RequestIDFrom(c), c.Writer.Header().Get(requestIDHeader), c.GetHeader(requestIDHeader))

		scoped := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", route).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = log.Error().Str("errors", c.Errors.String())
		case status >= 400:
			ev = log.Warn()
		case quiet[strings.ToLower(route)]:
			ev = log.Debug()
		default:
			ev = log.Info()
		}

		ev.Ctx(c.Request.Context()).
			Str("request_id", rid).
			Str("user_id", userIDFromCtx(c)).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", clip(red.rawQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", red.headerDict(c.Request.Header)).
			Msg("http_request")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

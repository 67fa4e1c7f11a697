package middleware

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// apiCSP locks down JSON responses; nothing they return is rendered.
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// mediaCSP sandboxes user uploads so a crafted file cannot run script
	// on the API origin.
	mediaCSP = "sandbox; default-src 'none'; img-src 'self'; media-src 'self'; style-src 'unsafe-inline'"
)

// activeMedia lists upload extensions a browser could execute when opened
// inline. They are always served as attachments.
var activeMedia = map[string]struct{}{
	".htm": {}, ".html": {}, ".svg": {}, ".xml": {}, ".xhtml": {}, ".js": {}, ".mjs": {},
}

// SecurityOptions selects the headers SecurityHeaders emits.
//
// PrivatePrefixes mark paths that carry room data; responses under them are
// never cached. MediaPrefix is where uploads are served from and DocsPrefix
// is the Swagger UI, which renders HTML and so gets no CSP.
type SecurityOptions struct {
	EnableHSTS      bool
	HSTSMaxAge      time.Duration // defaults to 180 days
	EnablePolicy    bool          // Permissions-Policy and cross-domain policy
	PrivatePrefixes []string
	MediaPrefix     string
	DocsPrefix      string
}

// SecurityHeaders sets baseline hardening headers on every response and
// path dependent caching and content policies.
//
// HSTS is only sent when the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		p := c.Request.URL.Path

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		switch {
		case underPrefix(p, opt.MediaPrefix):
			h.Set("Content-Security-Policy", mediaCSP)
			h.Set("X-Frame-Options", "DENY")
			if _, ok := activeMedia[strings.ToLower(path.Ext(p))]; ok {
				h.Set("Content-Disposition", "attachment")
			}
		case underPrefix(p, opt.DocsPrefix):
			h.Set("X-Frame-Options", "SAMEORIGIN")
		default:
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("X-Frame-Options", "DENY")
		}

		for _, pre := range opt.PrivatePrefixes {
			if underPrefix(p, pre) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
				break
			}
		}

		c.Next()
	}
}

// underPrefix matches prefix as a whole path segment, so "/api" does not
// match "/apiary". An empty prefix matches nothing; "/" matches everything.
func underPrefix(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// isHTTPS reports whether the request used TLS directly or the proxy in
// front of us says it did.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

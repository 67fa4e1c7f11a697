package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/auth"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "5000")

	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	SetPrincipal(c, auth.Principal{ID: "u123"})
	if got := KeyByUserOrIP()(c); got != UserKey("u123") {
		t.Fatalf("user key = %q", got)
	}
}

func TestRateLimiter_BucketsPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, KeyByUserOrIP())
	for i := 0; i < 2; i++ {
		if !rl.Allow("user:a") {
			t.Fatalf("token %d of the burst was refused", i+1)
		}
	}
	if rl.Allow("user:a") {
		t.Fatal("over-budget call allowed")
	}
	if !rl.Allow("user:b") {
		t.Fatal("a second key shares the first key's bucket")
	}
}

func TestRateLimiter_ZeroBurstIsOne(t *testing.T) {
	rl := NewRateLimiter(0.001, 0, KeyByUserOrIP())
	if !rl.Allow("k") || rl.Allow("k") {
		t.Fatal("burst should be coerced to exactly one token")
	}
}

func TestRateLimiter_RefusalKeepsTokens(t *testing.T) {
	rl := NewRateLimiter(10, 1, KeyByUserOrIP())
	now := time.Now()
	if ok, _ := rl.take("k", now); !ok {
		t.Fatal("first take refused")
	}
	ok, wait := rl.take("k", now)
	if ok || wait <= 0 || wait > 100*time.Millisecond {
		t.Fatalf("take = %v, %v; want refusal with a wait up to 100ms", ok, wait)
	}
	// A refused call must not push the next token further out.
	if ok, _ := rl.take("k", now.Add(150*time.Millisecond)); !ok {
		t.Fatal("token not available after one refill interval")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	start := time.Now()
	rl.limiter("old", start)
	fresh := rl.limiter("fresh", start.Add(defaultIdleTTL/2))

	later := start.Add(defaultIdleTTL + time.Second)
	if got := rl.limiter("fresh", later); got != fresh {
		t.Fatal("recently used bucket was replaced")
	}
	rl.mu.Lock()
	_, oldKept := rl.buckets["old"]
	rl.mu.Unlock()
	if oldKept {
		t.Fatal("idle bucket survived the sweep")
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatal("bypass set by default")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatal("non-bool value treated as bypass")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatal("bypass not honoured")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.5, 1, KeyByUserOrIP())

	newRouter := func(bypass bool) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Header(requestIDHeader, "rid-1")
			if bypass {
				c.Set(ctxKeyRateBypass, true)
			}
			c.Next()
		})
		r.Use(rl.Handler())
		r.POST("/rooms/r1/messages", func(c *gin.Context) { c.Status(http.StatusCreated) })
		return r
	}
	send := func(r *gin.Engine) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/r1/messages", nil))
		return w
	}

	r := newRouter(false)
	if w := send(r); w.Code != http.StatusCreated {
		t.Fatalf("first send = %d", w.Code)
	}
	w := send(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second send = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] != "rid-1" {
		t.Fatalf("body = %v", body)
	}

	if w := send(newRouter(true)); w.Code != http.StatusCreated {
		t.Fatalf("replay was limited: %d", w.Code)
	}
}

func Test_retryAfterSeconds(t *testing.T) {
	for d, want := range map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
	} {
		if got := retryAfterSeconds(d); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

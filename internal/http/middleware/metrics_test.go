package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func metricsRouter(streaming ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(streaming...))
	r.GET("/rooms/:room_id", func(c *gin.Context) { c.String(http.StatusOK, "room") })
	r.POST("/rooms/:room_id/seen", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/stream/unread", func(c *gin.Context) { c.String(http.StatusOK, "data: {}\n\n") })
	return r
}

func doRequest(r *gin.Engine, method, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	r := metricsRouter("/stream/unread")
	room := httpReqs.WithLabelValues(http.MethodGet, "/rooms/:room_id", "200")
	seen := httpReqs.WithLabelValues(http.MethodPost, "/rooms/:room_id/seen", "204")
	miss := httpReqs.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	roomBase, seenBase, missBase := testutil.ToFloat64(room), testutil.ToFloat64(seen), testutil.ToFloat64(miss)

	doRequest(r, http.MethodGet, "/rooms/r1")
	doRequest(r, http.MethodGet, "/rooms/r2")
	doRequest(r, http.MethodPost, "/rooms/r1/seen")
	doRequest(r, http.MethodGet, "/wp-admin.php")
	doRequest(r, http.MethodGet, "/.env")

	if got := testutil.ToFloat64(room) - roomBase; got != 2 {
		t.Fatalf("room requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(seen) - seenBase; got != 1 {
		t.Fatalf("seen requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(miss) - missBase; got != 2 {
		t.Fatalf("unmatched requests = %v, want 2", got)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v after all requests finished", v)
	}
}

func TestMetrics_StreamingRoutes(t *testing.T) {
	r := metricsRouter("/stream/unread")
	counter := httpReqs.WithLabelValues(http.MethodGet, "/stream/unread", "200")
	base := testutil.ToFloat64(counter)

	doRequest(r, http.MethodGet, "/rooms/r1")
	latBefore := testutil.CollectAndCount(httpLat)
	sizeBefore := testutil.CollectAndCount(httpRespSize)

	doRequest(r, http.MethodGet, "/stream/unread")

	if got := testutil.ToFloat64(counter) - base; got != 1 {
		t.Fatalf("stream requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(httpLat); n != latBefore {
		t.Fatalf("latency series %d -> %d for a streaming route", latBefore, n)
	}
	if n := testutil.CollectAndCount(httpRespSize); n != sizeBefore {
		t.Fatalf("size series %d -> %d for a streaming route", sizeBefore, n)
	}
}

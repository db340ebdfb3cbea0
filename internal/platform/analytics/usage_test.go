package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func metric(method, route string, status int) *RequestMetric {
	return &RequestMetric{
		Timestamp:  time.Now(),
		Method:     method,
		Route:      route,
		StatusCode: status,
		Duration:   time.Millisecond,
		Area:       AreaFromRoute(route),
	}
}

func TestUsageTracker_Record(t *testing.T) {
	tracker := NewUsageTracker(1000)
	m := metric("GET", "/api/v1/patients/:id", 200)
	m.UserID = "u1"
	m.SiteID = "main"
	tracker.Record(m)

	overview := tracker.GetOverview()
	if overview.TotalRequests != 1 || overview.TotalErrors != 0 {
		t.Fatalf("unexpected overview %+v", overview)
	}
	if overview.UniqueUsers != 1 || overview.UniqueEndpoints != 1 {
		t.Fatalf("unexpected uniques %+v", overview)
	}
}

func TestUsageTracker_RingBufferBounded(t *testing.T) {
	tracker := NewUsageTracker(100)
	for i := 0; i < 250; i++ {
		tracker.Record(metric("GET", "/api/v1/drugs", 200))
	}
	if got := tracker.Buffered(); got != 100 {
		t.Fatalf("expected ring capped at 100, got %d", got)
	}
	if got := tracker.GetOverview().TotalRequests; got != 250 {
		t.Fatalf("expected counters to keep counting, got %d", got)
	}
}

func TestUsageTracker_ConcurrentAccess(t *testing.T) {
	tracker := NewUsageTracker(500)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m := metric("GET", "/api/v1/workflows", 200)
				m.UserID = fmt.Sprintf("user-%d", g)
				tracker.Record(m)
				tracker.GetTopEndpoints(3)
			}
		}(g)
	}
	wg.Wait()

	if got := tracker.GetOverview().TotalRequests; got != 800 {
		t.Fatalf("expected 800 requests, got %d", got)
	}
}

func TestUsageTracker_EndpointStats(t *testing.T) {
	tracker := NewUsageTracker(1000)
	for i := 0; i < 8; i++ {
		tracker.Record(metric("GET", "/api/v1/patients/:id", 200))
	}
	tracker.Record(metric("GET", "/api/v1/patients/:id", 404))
	tracker.Record(metric("GET", "/api/v1/patients/:id", 500))

	stats := tracker.GetEndpointStats("GET", "/api/v1/patients/:id")
	if stats == nil {
		t.Fatal("expected endpoint stats")
	}
	if stats.TotalRequests != 10 {
		t.Errorf("expected 10, got %d", stats.TotalRequests)
	}
	if stats.ErrorRate != 0.2 {
		t.Errorf("expected error rate 0.2, got %f", stats.ErrorRate)
	}
	if stats.StatusBreakdown[404] != 1 || stats.StatusBreakdown[200] != 8 {
		t.Errorf("unexpected breakdown %v", stats.StatusBreakdown)
	}
	if tracker.GetEndpointStats("POST", "/api/v1/patients/:id") != nil {
		t.Error("method is part of the endpoint key")
	}
}

func TestUsageTracker_P95(t *testing.T) {
	tracker := NewUsageTracker(1000)
	for i := 1; i <= 100; i++ {
		m := metric("GET", "/api/v1/drugs", 200)
		m.Duration = time.Duration(i) * time.Millisecond
		tracker.Record(m)
	}
	if got := tracker.GetEndpointStats("GET", "/api/v1/drugs").P95Latency; got != 96*time.Millisecond {
		t.Errorf("expected p95 96ms, got %v", got)
	}
}

func TestUsageTracker_TopEndpoints(t *testing.T) {
	tracker := NewUsageTracker(1000)
	for i := 0; i < 5; i++ {
		tracker.Record(metric("GET", "/api/v1/drugs", 200))
	}
	for i := 0; i < 10; i++ {
		tracker.Record(metric("GET", "/api/v1/patients", 200))
	}
	tracker.Record(metric("DELETE", "/api/v1/comparison", 204))

	top := tracker.GetTopEndpoints(2)
	if len(top) != 2 {
		t.Fatalf("expected 2, got %d", len(top))
	}
	if top[0].Endpoint != "GET /api/v1/patients" || top[1].Endpoint != "GET /api/v1/drugs" {
		t.Errorf("unexpected order %s, %s", top[0].Endpoint, top[1].Endpoint)
	}
}

func TestUsageTracker_UserStats(t *testing.T) {
	tracker := NewUsageTracker(1000)
	for _, site := range []string{"main", "north", "main"} {
		m := metric("GET", "/api/v1/patients", 200)
		m.UserID = "u1"
		m.SiteID = site
		tracker.Record(m)
	}

	s := tracker.GetUserStats("u1")
	if s == nil || s.TotalRequests != 3 {
		t.Fatalf("unexpected user stats %+v", s)
	}
	if strings.Join(s.Sites, ",") != "main,north" {
		t.Errorf("expected sorted distinct sites, got %v", s.Sites)
	}
	if tracker.GetUserStats("nobody") != nil {
		t.Error("expected nil for unknown user")
	}
}

func TestUsageTracker_Areas(t *testing.T) {
	tracker := NewUsageTracker(1000)
	tracker.Record(metric("GET", "/api/v1/patients", 200))
	tracker.Record(metric("GET", "/api/v1/patients/:id", 200))
	tracker.Record(metric("POST", "/api/v1/patients", 201))
	tracker.Record(metric("PATCH", "/api/v1/patients/:id", 200))
	tracker.Record(metric("DELETE", "/api/v1/patients/:id", 204))
	tracker.Record(metric("GET", "/api/v1/drugs", 200))

	areas := tracker.GetAreas()
	if len(areas) != 2 || areas[0].Area != "patients" {
		t.Fatalf("unexpected areas %+v", areas)
	}
	p := areas[0]
	if p.ListCount != 1 || p.ReadCount != 1 || p.CreateCount != 1 || p.UpdateCount != 1 || p.DeleteCount != 1 || p.Total != 5 {
		t.Errorf("unexpected patient area counts %+v", p)
	}
}

func TestAreaFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/patients/:id/dashboard": "patients",
		"/api/v1/drugs":                  "drugs",
		"/api/analytics":                 "analytics",
		"/health":                        "",
		"/api/v1/:x":                     "",
	}
	for route, want := range tests {
		if got := AreaFromRoute(route); got != want {
			t.Errorf("AreaFromRoute(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestUsageTracker_TimeSeries(t *testing.T) {
	tracker := NewUsageTracker(1000)
	now := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := metric("GET", "/api/v1/drugs", 200)
		m.Timestamp = now.Add(-90 * time.Second)
		tracker.Record(m)
	}
	old := metric("GET", "/api/v1/drugs", 500)
	old.Timestamp = now.Add(-2 * time.Hour)
	tracker.Record(old)

	buckets := tracker.GetTimeSeries(now, time.Minute, 5*time.Minute)
	if len(buckets) != 6 {
		t.Fatalf("expected 6 buckets, got %d", len(buckets))
	}
	var total, errs int64
	for _, b := range buckets {
		total += b.RequestCount
		errs += b.ErrorCount
	}
	if total != 3 || errs != 0 {
		t.Errorf("expected 3 requests and no errors in window, got %d/%d", total, errs)
	}
}

func TestParseDurationParam(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Hour},
		{"5m", 5 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"xd", time.Hour},
		{"-1m", time.Hour},
		{"garbage", time.Hour},
	}
	for _, tt := range tests {
		if got := ParseDurationParam(tt.in, time.Hour); got != tt.want {
			t.Errorf("ParseDurationParam(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUsageMiddleware_RecordsRouteAndIdentity(t *testing.T) {
	tracker := NewUsageTracker(1000)
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "u42")
			c.Set("site_id", "main")
			return next(c)
		}
	})
	e.Use(UsageMiddleware(tracker, metrics))
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/abc", nil))

	stats := tracker.GetEndpointStats("GET", "/api/v1/patients/:id")
	if stats == nil {
		t.Fatal("expected stats keyed by route pattern")
	}
	if stats.StatusBreakdown[404] != 1 {
		t.Errorf("expected 404 recorded, got %v", stats.StatusBreakdown)
	}
	if s := tracker.GetUserStats("u42"); s == nil || s.Sites[0] != "main" {
		t.Errorf("expected user u42 at main, got %+v", s)
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/v1/patients/:id", "404")); got != 1 {
		t.Errorf("expected prometheus counter 1, got %v", got)
	}
}

func TestUsageHandler_Overview(t *testing.T) {
	tracker := NewUsageTracker(1000)
	tracker.Record(metric("GET", "/api/v1/drugs", 200))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/analytics/usage", nil), rec)

	if err := NewUsageHandler(tracker).HandleOverview(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result UsageOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TotalRequests != 1 {
		t.Fatalf("expected 1, got %d", result.TotalRequests)
	}
}

func TestUsageHandler_UserStatsNotFound(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/analytics/usage/users/x", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")

	err := NewUsageHandler(NewUsageTracker(10)).HandleUserStats(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestUsageHandler_TimeSeriesRejectsHugeRange(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/analytics/usage/timeseries?interval=1s&duration=30d", nil), httptest.NewRecorder())

	err := NewUsageHandler(NewUsageTracker(10)).HandleTimeSeries(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

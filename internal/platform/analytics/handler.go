package analytics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// UsageMiddleware records every request into tracker and, when metrics is
// non-nil, into Prometheus. Requests with no matched route are recorded
// under "unmatched" to keep label cardinality bounded.
func UsageMiddleware(tracker *UsageTracker, metrics *HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if metrics != nil {
				metrics.inFlight.Inc()
				defer metrics.inFlight.Dec()
			}
			start := time.Now()
			req := c.Request()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			userID, _ := c.Get("user_id").(string)
			siteID, _ := c.Get("site_id").(string)

			var requestSize int64
			if req.ContentLength > 0 {
				requestSize = req.ContentLength
			}

			metric := &RequestMetric{
				Timestamp:    start,
				Method:       req.Method,
				Route:        route,
				StatusCode:   status,
				Duration:     time.Since(start),
				UserID:       userID,
				SiteID:       siteID,
				Area:         AreaFromRoute(route),
				RequestSize:  requestSize,
				ResponseSize: c.Response().Size,
			}
			tracker.Record(metric)
			metrics.observe(metric)

			return err
		}
	}
}

// UsageHandler serves the usage tracker under /api/analytics/usage.
type UsageHandler struct {
	tracker *UsageTracker
}

func NewUsageHandler(tracker *UsageTracker) *UsageHandler {
	return &UsageHandler{tracker: tracker}
}

func (h *UsageHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/analytics/usage", h.HandleOverview)
	g.GET("/analytics/usage/endpoints", h.HandleTopEndpoints)
	g.GET("/analytics/usage/users", h.HandleTopUsers)
	g.GET("/analytics/usage/users/:id", h.HandleUserStats)
	g.GET("/analytics/usage/areas", h.HandleAreas)
	g.GET("/analytics/usage/timeseries", h.HandleTimeSeries)
}

func (h *UsageHandler) HandleOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetOverview())
}

func (h *UsageHandler) HandleTopEndpoints(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetTopEndpoints(limitParam(c, 20)))
}

func (h *UsageHandler) HandleTopUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetTopUsers(limitParam(c, 20)))
}

func (h *UsageHandler) HandleUserStats(c echo.Context) error {
	summary := h.tracker.GetUserStats(c.Param("id"))
	if summary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *UsageHandler) HandleAreas(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetAreas())
}

func (h *UsageHandler) HandleTimeSeries(c echo.Context) error {
	interval := ParseDurationParam(c.QueryParam("interval"), time.Minute)
	duration := ParseDurationParam(c.QueryParam("duration"), time.Hour)
	if duration/interval > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "too many buckets")
	}
	return c.JSON(http.StatusOK, h.tracker.GetTimeSeries(time.Now(), interval, duration))
}

func limitParam(c echo.Context, def int) int {
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

// ParseDurationParam accepts Go durations plus a "d" suffix for days.
// Non-positive or malformed values return def.
func ParseDurationParam(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

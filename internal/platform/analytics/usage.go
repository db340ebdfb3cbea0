// Package analytics tracks HTTP API usage in memory and exports request
// metrics to Prometheus.
package analytics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RequestMetric is one served API request.
type RequestMetric struct {
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Route        string        `json:"route"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	UserID       string        `json:"user_id"`
	SiteID       string        `json:"site_id"`
	Area         string        `json:"area"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// endpointKey groups requests by method and route pattern so that
// /api/v1/patients/:id is one endpoint regardless of the id.
func endpointKey(method, route string) string {
	return method + " " + route
}

type endpointStats struct {
	Key           string
	TotalRequests int64
	TotalErrors   int64
	TotalDuration int64
	StatusCounts  map[int]int64
	mu            sync.Mutex
}

type userStats struct {
	UserID        string
	TotalRequests int64
	TotalErrors   int64
	LastRequestAt time.Time
	Sites         map[string]struct{}
	mu            sync.Mutex
}

type areaStats struct {
	Area        string
	ReadCount   int64
	ListCount   int64
	CreateCount int64
	UpdateCount int64
	DeleteCount int64
	mu          sync.Mutex
}

// EndpointSummary aggregates one method + route.
type EndpointSummary struct {
	Endpoint        string        `json:"endpoint"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

type UserSummary struct {
	UserID        string    `json:"user_id"`
	TotalRequests int64     `json:"total_requests"`
	ErrorRate     float64   `json:"error_rate"`
	LastSeen      time.Time `json:"last_seen"`
	Sites         []string  `json:"sites"`
}

// AreaSummary breaks an API area (patients, drugs, workflows, ...) down by
// operation kind.
type AreaSummary struct {
	Area        string `json:"area"`
	ReadCount   int64  `json:"read_count"`
	ListCount   int64  `json:"list_count"`
	CreateCount int64  `json:"create_count"`
	UpdateCount int64  `json:"update_count"`
	DeleteCount int64  `json:"delete_count"`
	Total       int64  `json:"total"`
}

type UsageOverview struct {
	TotalRequests   int64              `json:"total_requests"`
	TotalErrors     int64              `json:"total_errors"`
	ErrorRate       float64            `json:"error_rate"`
	AvgLatency      time.Duration      `json:"avg_latency"`
	UniqueUsers     int                `json:"unique_users"`
	UniqueEndpoints int                `json:"unique_endpoints"`
	TopEndpoints    []*EndpointSummary `json:"top_endpoints"`
	TopUsers        []*UserSummary     `json:"top_users"`
}

type TimeSeriesBucket struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// UsageTracker keeps the most recent requests in a ring buffer plus running
// counters per endpoint, user and API area. Safe for concurrent use.
type UsageTracker struct {
	metrics    []*RequestMetric
	maxMetrics int
	writePos   int
	full       bool

	endpoints map[string]*endpointStats
	users     map[string]*userStats
	areas     map[string]*areaStats
	mu        sync.RWMutex

	totalRequests int64
	totalErrors   int64
	totalDuration int64
}

func NewUsageTracker(maxMetrics int) *UsageTracker {
	if maxMetrics <= 0 {
		maxMetrics = 100000
	}
	return &UsageTracker{
		metrics:    make([]*RequestMetric, 0, maxMetrics),
		maxMetrics: maxMetrics,
		endpoints:  make(map[string]*endpointStats),
		users:      make(map[string]*userStats),
		areas:      make(map[string]*areaStats),
	}
}

// Record stores a metric and updates every counter.
func (ut *UsageTracker) Record(metric *RequestMetric) {
	isError := metric.StatusCode >= 400

	atomic.AddInt64(&ut.totalRequests, 1)
	if isError {
		atomic.AddInt64(&ut.totalErrors, 1)
	}
	atomic.AddInt64(&ut.totalDuration, int64(metric.Duration))

	key := endpointKey(metric.Method, metric.Route)

	ut.mu.Lock()
	if ut.full {
		ut.metrics[ut.writePos] = metric
	} else {
		ut.metrics = append(ut.metrics, metric)
	}
	ut.writePos++
	if ut.writePos >= ut.maxMetrics {
		ut.writePos = 0
		ut.full = true
	}

	ep, ok := ut.endpoints[key]
	if !ok {
		ep = &endpointStats{Key: key, StatusCounts: make(map[int]int64)}
		ut.endpoints[key] = ep
	}

	var us *userStats
	if metric.UserID != "" {
		if us, ok = ut.users[metric.UserID]; !ok {
			us = &userStats{UserID: metric.UserID, Sites: make(map[string]struct{})}
			ut.users[metric.UserID] = us
		}
	}

	var as *areaStats
	if metric.Area != "" {
		if as, ok = ut.areas[metric.Area]; !ok {
			as = &areaStats{Area: metric.Area}
			ut.areas[metric.Area] = as
		}
	}
	ut.mu.Unlock()

	ep.mu.Lock()
	ep.TotalRequests++
	if isError {
		ep.TotalErrors++
	}
	ep.TotalDuration += int64(metric.Duration)
	ep.StatusCounts[metric.StatusCode]++
	ep.mu.Unlock()

	if us != nil {
		us.mu.Lock()
		us.TotalRequests++
		if isError {
			us.TotalErrors++
		}
		if metric.Timestamp.After(us.LastRequestAt) {
			us.LastRequestAt = metric.Timestamp
		}
		if metric.SiteID != "" {
			us.Sites[metric.SiteID] = struct{}{}
		}
		us.mu.Unlock()
	}

	if as != nil {
		as.mu.Lock()
		switch metric.Method {
		case "POST":
			as.CreateCount++
		case "PUT", "PATCH":
			as.UpdateCount++
		case "DELETE":
			as.DeleteCount++
		case "GET":
			if strings.Contains(metric.Route, ":") {
				as.ReadCount++
			} else {
				as.ListCount++
			}
		}
		as.mu.Unlock()
	}
}

// AreaFromRoute returns the resource segment after /api/v1/ (or /api/),
// e.g. "patients" for /api/v1/patients/:id.
func AreaFromRoute(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok {
		if rest, ok = strings.CutPrefix(route, "/api/"); !ok {
			return ""
		}
	}
	area, _, _ := strings.Cut(rest, "/")
	if strings.HasPrefix(area, ":") {
		return ""
	}
	return area
}

func (ut *UsageTracker) GetEndpointStats(method, route string) *EndpointSummary {
	ut.mu.RLock()
	ep, ok := ut.endpoints[endpointKey(method, route)]
	ut.mu.RUnlock()
	if !ok {
		return nil
	}
	return ut.buildEndpointSummary(ep)
}

func (ut *UsageTracker) GetUserStats(userID string) *UserSummary {
	ut.mu.RLock()
	us, ok := ut.users[userID]
	ut.mu.RUnlock()
	if !ok {
		return nil
	}
	return buildUserSummary(us)
}

// GetAreas returns area summaries sorted by total descending.
func (ut *UsageTracker) GetAreas() []*AreaSummary {
	ut.mu.RLock()
	out := make([]*AreaSummary, 0, len(ut.areas))
	for _, as := range ut.areas {
		as.mu.Lock()
		out = append(out, &AreaSummary{
			Area:        as.Area,
			ReadCount:   as.ReadCount,
			ListCount:   as.ListCount,
			CreateCount: as.CreateCount,
			UpdateCount: as.UpdateCount,
			DeleteCount: as.DeleteCount,
			Total:       as.ReadCount + as.ListCount + as.CreateCount + as.UpdateCount + as.DeleteCount,
		})
		as.mu.Unlock()
	}
	ut.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Area < out[j].Area
	})
	return out
}

func (ut *UsageTracker) GetOverview() *UsageOverview {
	total := atomic.LoadInt64(&ut.totalRequests)
	errs := atomic.LoadInt64(&ut.totalErrors)

	ut.mu.RLock()
	uniqueUsers := len(ut.users)
	uniqueEndpoints := len(ut.endpoints)
	ut.mu.RUnlock()

	return &UsageOverview{
		TotalRequests:   total,
		TotalErrors:     errs,
		ErrorRate:       ut.GetErrorRate(),
		AvgLatency:      ut.GetAverageLatency(),
		UniqueUsers:     uniqueUsers,
		UniqueEndpoints: uniqueEndpoints,
		TopEndpoints:    ut.GetTopEndpoints(5),
		TopUsers:        ut.GetTopUsers(5),
	}
}

// GetTopEndpoints returns up to limit endpoints by request count.
func (ut *UsageTracker) GetTopEndpoints(limit int) []*EndpointSummary {
	ut.mu.RLock()
	eps := make([]*endpointStats, 0, len(ut.endpoints))
	for _, ep := range ut.endpoints {
		eps = append(eps, ep)
	}
	ut.mu.RUnlock()

	summaries := make([]*EndpointSummary, 0, len(eps))
	for _, ep := range eps {
		summaries = append(summaries, ut.buildEndpointSummary(ep))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalRequests != summaries[j].TotalRequests {
			return summaries[i].TotalRequests > summaries[j].TotalRequests
		}
		return summaries[i].Endpoint < summaries[j].Endpoint
	})
	return truncate(summaries, limit)
}

func (ut *UsageTracker) GetTopUsers(limit int) []*UserSummary {
	ut.mu.RLock()
	summaries := make([]*UserSummary, 0, len(ut.users))
	for _, us := range ut.users {
		summaries = append(summaries, buildUserSummary(us))
	}
	ut.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalRequests != summaries[j].TotalRequests {
			return summaries[i].TotalRequests > summaries[j].TotalRequests
		}
		return summaries[i].UserID < summaries[j].UserID
	})
	return truncate(summaries, limit)
}

func truncate[T any](s []T, limit int) []T {
	if limit >= 0 && limit < len(s) {
		return s[:limit]
	}
	return s
}

// GetTimeSeries buckets buffered requests by interval over the trailing
// duration ending at now.
func (ut *UsageTracker) GetTimeSeries(now time.Time, interval, duration time.Duration) []*TimeSeriesBucket {
	if interval <= 0 {
		interval = time.Minute
	}
	start := now.Add(-duration).Truncate(interval)
	numBuckets := int(now.Sub(start)/interval) + 1

	buckets := make([]*TimeSeriesBucket, numBuckets)
	for i := range buckets {
		buckets[i] = &TimeSeriesBucket{Timestamp: start.Add(time.Duration(i) * interval)}
	}

	for _, m := range ut.snapshot() {
		if m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		idx := int(m.Timestamp.Sub(start) / interval)
		if idx >= numBuckets {
			continue
		}
		buckets[idx].RequestCount++
		if m.StatusCode >= 400 {
			buckets[idx].ErrorCount++
		}
		buckets[idx].AvgLatency += m.Duration
	}

	for _, b := range buckets {
		if b.RequestCount > 0 {
			b.AvgLatency = time.Duration(int64(b.AvgLatency) / b.RequestCount)
		}
	}
	return buckets
}

func (ut *UsageTracker) GetErrorRate() float64 {
	total := atomic.LoadInt64(&ut.totalRequests)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&ut.totalErrors)) / float64(total)
}

func (ut *UsageTracker) GetAverageLatency() time.Duration {
	total := atomic.LoadInt64(&ut.totalRequests)
	if total == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&ut.totalDuration) / total)
}

// Buffered returns how many metrics the ring currently holds.
func (ut *UsageTracker) Buffered() int {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	return len(ut.metrics)
}

func (ut *UsageTracker) snapshot() []*RequestMetric {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	out := make([]*RequestMetric, len(ut.metrics))
	copy(out, ut.metrics)
	return out
}

func (ut *UsageTracker) buildEndpointSummary(ep *endpointStats) *EndpointSummary {
	p95 := ut.p95(ep.Key)

	ep.mu.Lock()
	defer ep.mu.Unlock()

	s := &EndpointSummary{
		Endpoint:        ep.Key,
		TotalRequests:   ep.TotalRequests,
		P95Latency:      p95,
		StatusBreakdown: make(map[int]int64, len(ep.StatusCounts)),
	}
	if ep.TotalRequests > 0 {
		s.ErrorRate = float64(ep.TotalErrors) / float64(ep.TotalRequests)
		s.AvgLatency = time.Duration(ep.TotalDuration / ep.TotalRequests)
	}
	for code, n := range ep.StatusCounts {
		s.StatusBreakdown[code] = n
	}
	return s
}

func buildUserSummary(us *userStats) *UserSummary {
	us.mu.Lock()
	defer us.mu.Unlock()

	s := &UserSummary{
		UserID:        us.UserID,
		TotalRequests: us.TotalRequests,
		LastSeen:      us.LastRequestAt,
		Sites:         make([]string, 0, len(us.Sites)),
	}
	if us.TotalRequests > 0 {
		s.ErrorRate = float64(us.TotalErrors) / float64(us.TotalRequests)
	}
	for site := range us.Sites {
		s.Sites = append(s.Sites, site)
	}
	sort.Strings(s.Sites)
	return s
}

// p95 is computed over the requests still in the ring buffer.
func (ut *UsageTracker) p95(key string) time.Duration {
	var durations []time.Duration
	for _, m := range ut.snapshot() {
		if endpointKey(m.Method, m.Route) == key {
			durations = append(durations, m.Duration)
		}
	}
	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := int(float64(len(durations)) * 0.95)
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	return durations[idx]
}

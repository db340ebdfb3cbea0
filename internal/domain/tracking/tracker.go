package tracking

import (
	"sort"
	"sync"
	"time"
)

// Counted is one entry of a top-N list.
type Counted struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

type Metrics struct {
	TotalEvents    int64               `json:"total_events"`
	ByType         map[EventType]int64 `json:"by_type"`
	TopPaths       []Counted           `json:"top_paths"`
	TopDrugs       []Counted           `json:"top_drugs"`
	ActiveSessions int                 `json:"active_sessions"`
	Hourly         []HourBucket        `json:"hourly"`
	Recent         []Event             `json:"recent,omitempty"`
}

const (
	topN        = 10
	hourlyLimit = 24
)

// Tracker keeps the most recent events in a ring buffer and running
// counters over everything recorded. Safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	writePos int
	full     bool

	total    int64
	byType   map[EventType]int64
	paths    map[string]int64
	drugs    map[string]int64
	sessions map[string]struct{}
	hourly   map[int64]int64
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Tracker{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		byType:   make(map[EventType]int64),
		paths:    make(map[string]int64),
		drugs:    make(map[string]int64),
		sessions: make(map[string]struct{}),
		hourly:   make(map[int64]int64),
	}
}

func (t *Tracker) Record(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.full {
		t.events[t.writePos] = e
	} else {
		t.events = append(t.events, e)
	}
	t.writePos = (t.writePos + 1) % t.capacity
	if t.writePos == 0 {
		t.full = true
	}

	t.total++
	t.byType[e.Type]++
	if e.Type == PageView && e.Path != "" {
		t.paths[e.Path]++
	}
	switch e.Type {
	case DrugSelected:
		if k := e.drugKey(); k != "" {
			t.drugs[k]++
		}
	case SessionStart:
		t.sessions[e.SessionID] = struct{}{}
	case SessionEnd:
		delete(t.sessions, e.SessionID)
	}

	hour := e.Timestamp.UTC().Truncate(time.Hour).Unix()
	t.hourly[hour]++
	if len(t.hourly) > hourlyLimit*2 {
		t.pruneHourly()
	}
}

// pruneHourly keeps the newest hourlyLimit buckets. Caller holds mu.
func (t *Tracker) pruneHourly() {
	keys := make([]int64, 0, len(t.hourly))
	for k := range t.hourly {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	for _, k := range keys[hourlyLimit:] {
		delete(t.hourly, k)
	}
}

func top(m map[string]int64, n int) []Counted {
	out := make([]Counted, 0, len(m))
	for k, v := range m {
		out = append(out, Counted{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Recent returns up to n of the newest events, newest first.
func (t *Tracker) Recent(n int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recent(n)
}

func (t *Tracker) recent(n int) []Event {
	size := len(t.events)
	if n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (t.writePos - i + t.capacity) % t.capacity
		if !t.full {
			idx = size - i
		}
		out = append(out, t.events[idx])
	}
	return out
}

// Metrics snapshots the counters. Hourly buckets are oldest first.
func (t *Tracker) Metrics(recent int) Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{
		TotalEvents:    t.total,
		ByType:         make(map[EventType]int64, len(eventTypes)),
		TopPaths:       top(t.paths, topN),
		TopDrugs:       top(t.drugs, topN),
		ActiveSessions: len(t.sessions),
		Hourly:         make([]HourBucket, 0, len(t.hourly)),
	}
	for _, et := range eventTypes {
		m.ByType[et] = t.byType[et]
	}
	for h, c := range t.hourly {
		m.Hourly = append(m.Hourly, HourBucket{Hour: time.Unix(h, 0).UTC(), Count: c})
	}
	sort.Slice(m.Hourly, func(i, j int) bool { return m.Hourly[i].Hour.Before(m.Hourly[j].Hour) })
	if len(m.Hourly) > hourlyLimit {
		m.Hourly = m.Hourly[len(m.Hourly)-hourlyLimit:]
	}
	if recent > 0 {
		m.Recent = t.recent(recent)
	}
	return m
}

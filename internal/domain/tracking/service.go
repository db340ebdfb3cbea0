package tracking

import (
	"context"
	"time"
)

// Queue accepts events for asynchronous persistence.
type Queue interface {
	Enqueue(e Event) bool
}

type Service struct {
	tracker *Tracker
	queue   Queue
	now     func() time.Time
}

func NewService(tracker *Tracker, queue Queue) *Service {
	return &Service{tracker: tracker, queue: queue, now: time.Now}
}

type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// Ingest validates every event before recording any, so a bad event
// rejects the whole request. Events the persistence queue cannot take are
// still counted in memory.
func (s *Service) Ingest(_ context.Context, events []Event) (IngestResult, error) {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return IngestResult{}, err
		}
	}
	var res IngestResult
	now := s.now()
	for i := range events {
		e := events[i]
		e.stamp(now)
		s.tracker.Record(e)
		res.Accepted++
		if s.queue != nil && !s.queue.Enqueue(e) {
			res.Dropped++
		}
	}
	return res, nil
}

func (s *Service) Metrics(recent int) Metrics {
	return s.tracker.Metrics(recent)
}

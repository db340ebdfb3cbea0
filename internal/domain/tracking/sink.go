package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Sink persists a batch of events.
type Sink interface {
	Write(ctx context.Context, batch []Event) error
}

type pgSink struct{ pool *pgxpool.Pool }

// NewPGSink writes batches to shared.analytics_event with COPY.
func NewPGSink(pool *pgxpool.Pool) Sink {
	return &pgSink{pool: pool}
}

var eventColumns = []string{"id", "type", "name", "user_id", "session_id", "path", "properties", "occurred_at"}

func (s *pgSink) Write(ctx context.Context, batch []Event) error {
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"shared", "analytics_event"}, eventColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			e := batch[i]
			var props any
			if len(e.Properties) > 0 {
				props = string(e.Properties)
			}
			return []any{e.ID, string(e.Type), e.Name, e.UserID, e.SessionID, e.Path, props, e.Timestamp}, nil
		}))
	return err
}

const (
	defaultBatchSize     = 256
	defaultFlushInterval = 5 * time.Second
)

type batcherMetrics struct {
	enqueued prometheus.Counter
	dropped  prometheus.Counter
	written  prometheus.Counter
	failed   prometheus.Counter
}

func newBatcherMetrics(reg prometheus.Registerer) *batcherMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oncodash", Subsystem: "analytics", Name: name, Help: help,
		})
	}
	m := &batcherMetrics{
		enqueued: counter("events_enqueued_total", "Analytics events queued for persistence."),
		dropped:  counter("events_dropped_total", "Analytics events dropped because the queue was full."),
		written:  counter("events_written_total", "Analytics events persisted."),
		failed:   counter("events_failed_total", "Analytics events lost to sink errors."),
	}
	if reg != nil {
		reg.MustRegister(m.enqueued, m.dropped, m.written, m.failed)
	}
	return m
}

// Batcher queues events on a bounded channel and writes them to a sink
// when a batch fills or the flush interval passes. Failed batches are
// logged and discarded.
type Batcher struct {
	sink     Sink
	ch       chan Event
	size     int
	interval time.Duration
	logger   zerolog.Logger
	metrics  *batcherMetrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type BatcherConfig struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	Registerer    prometheus.Registerer
}

func NewBatcher(sink Sink, cfg BatcherConfig, logger zerolog.Logger) *Batcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4096
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Batcher{
		sink:     sink,
		ch:       make(chan Event, cfg.Buffer),
		size:     cfg.BatchSize,
		interval: cfg.FlushInterval,
		logger:   logger.With().Str("component", "analytics_sink").Logger(),
		metrics:  newBatcherMetrics(cfg.Registerer),
		done:     make(chan struct{}),
	}
}

// Enqueue never blocks. It reports false when the queue is full or
// closed and the event was dropped.
func (b *Batcher) Enqueue(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.metrics.dropped.Inc()
		return false
	}
	select {
	case b.ch <- e:
		b.metrics.enqueued.Inc()
		return true
	default:
		b.metrics.dropped.Inc()
		return false
	}
}

// Run consumes the queue until Close is called, then drains what is left.
// The context only bounds individual sink writes.
func (b *Batcher) Run(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]Event, 0, b.size)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := b.sink.Write(wctx, batch); err != nil {
			b.metrics.failed.Add(float64(len(batch)))
			b.logger.Error().Err(err).Int("events", len(batch)).Msg("analytics batch write failed")
		} else {
			b.metrics.written.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-b.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= b.size {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting events and waits for Run to drain, or for ctx to
// expire. Events enqueued after Close are dropped.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.mu.Unlock()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

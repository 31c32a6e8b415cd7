// Package batch implements the process-wide decision/event batching
// singleton that buffers records and flushes them to the sink.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// Sink is the durable store the processor flushes batches to (pkg/sink).
type Sink interface {
	RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error
	RecordEvents(ctx context.Context, recs []record.EventRecord) error
}

// Config controls batching/backpressure thresholds.
type Config struct {
	BatchSize     int
	MaxWaitTime   time.Duration
	HighWatermark int // buffer size that forces a synchronous flush
}

// Processor buffers DecisionRecords and EventRecords and flushes them to
// the sink when the buffer reaches BatchSize, the oldest item exceeds
// MaxWaitTime, or — as backpressure — the buffer exceeds HighWatermark. A
// ticker drives the periodic flush; wg/stopCh handle graceful shutdown.
type Processor struct {
	cfg  Config
	sink Sink

	mu             sync.Mutex
	decisions      []record.DecisionRecord
	oldestDecision time.Time
	events         []record.EventRecord
	oldestEvent    time.Time

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Processor over sink. Call Start to launch the flusher.
func New(cfg Config, sink Sink) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxWaitTime <= 0 {
		cfg.MaxWaitTime = 5 * time.Second
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = cfg.BatchSize * 10
	}
	return &Processor{cfg: cfg, sink: sink}
}

// Start launches the background flusher. Safe to call once.
func (p *Processor) Start(ctx context.Context) {
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	tick := p.cfg.MaxWaitTime / 5
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.maybeFlush(context.Background(), false)
		}
	}
}

// AddDecisionRecord appends rec to the in-memory buffer, non-blocking,
// triggering a synchronous flush if the high watermark is exceeded
// (backpressure).
func (p *Processor) AddDecisionRecord(rec record.DecisionRecord) {
	p.mu.Lock()
	if len(p.decisions) == 0 {
		p.oldestDecision = time.Now()
	}
	p.decisions = append(p.decisions, rec)
	over := len(p.decisions) >= p.cfg.HighWatermark
	p.mu.Unlock()

	if over {
		p.flushDecisions(context.Background())
	}
}

// AddStorageEvent appends rec to the in-memory buffer, same policy as
// AddDecisionRecord.
func (p *Processor) AddStorageEvent(rec record.EventRecord) {
	p.mu.Lock()
	if len(p.events) == 0 {
		p.oldestEvent = time.Now()
	}
	p.events = append(p.events, rec)
	over := len(p.events) >= p.cfg.HighWatermark
	p.mu.Unlock()

	if over {
		p.flushEvents(context.Background())
	}
}

// maybeFlush checks size/age thresholds (or force=true, used by Stop) and
// flushes either buffer that qualifies.
func (p *Processor) maybeFlush(ctx context.Context, force bool) {
	p.mu.Lock()
	flushDecisions := force || (len(p.decisions) >= p.cfg.BatchSize) ||
		(len(p.decisions) > 0 && time.Since(p.oldestDecision) >= p.cfg.MaxWaitTime)
	flushEvents := force || (len(p.events) >= p.cfg.BatchSize) ||
		(len(p.events) > 0 && time.Since(p.oldestEvent) >= p.cfg.MaxWaitTime)
	p.mu.Unlock()

	if flushDecisions {
		p.flushDecisions(ctx)
	}
	if flushEvents {
		p.flushEvents(ctx)
	}
}

func (p *Processor) flushDecisions(ctx context.Context) {
	p.mu.Lock()
	batch := p.decisions
	p.decisions = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := p.sink.RecordDecisions(ctx, batch); err != nil {
		// Sink failure policy: retain the batch, retry with backoff,
		// never drop decision records.
		slog.Error("batch: decision flush failed, re-buffering", "count", len(batch), "error", err)
		p.mu.Lock()
		p.decisions = append(batch, p.decisions...)
		p.mu.Unlock()
	}
}

func (p *Processor) flushEvents(ctx context.Context) {
	p.mu.Lock()
	batch := p.events
	p.events = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := p.sink.RecordEvents(ctx, batch); err != nil {
		slog.Error("batch: event flush failed, re-buffering", "count", len(batch), "error", err)
		p.mu.Lock()
		p.events = append(batch, p.events...)
		p.mu.Unlock()
	}
}

// Stop flushes remaining items, then disables the processor.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.stopOnce.Do(func() {
			p.cancel()
			<-p.done
		})
	}
	p.maybeFlush(context.Background(), true)
}

// PendingCounts reports buffer sizes, for health/metrics.
func (p *Processor) PendingCounts() (decisions, events int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.decisions), len(p.events)
}

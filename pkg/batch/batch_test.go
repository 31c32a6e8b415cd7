package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	mu        sync.Mutex
	decisions [][]record.DecisionRecord
	events    [][]record.EventRecord
	failNext  bool
}

func (s *stubSink) RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return assert.AnError
	}
	s.decisions = append(s.decisions, recs)
	return nil
}

func (s *stubSink) RecordEvents(ctx context.Context, recs []record.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recs)
	return nil
}

func (s *stubSink) decisionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.decisions {
		n += len(b)
	}
	return n
}

func TestAddDecisionRecordFlushesAtBatchSize(t *testing.T) {
	sink := &stubSink{}
	p := New(Config{BatchSize: 2, MaxWaitTime: time.Hour}, sink)

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})
	dec, _ := p.PendingCounts()
	assert.Equal(t, 1, dec)

	// Force a flush directly; background ticker isn't running without Start.
	p.maybeFlush(context.Background(), false)
	dec, _ = p.PendingCounts()
	assert.Equal(t, 1, dec, "below BatchSize, should not flush yet")

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d2"})
	p.maybeFlush(context.Background(), false)
	dec, _ = p.PendingCounts()
	assert.Equal(t, 0, dec)
	assert.Equal(t, 2, sink.decisionCount())
}

func TestHighWatermarkForcesSynchronousFlush(t *testing.T) {
	sink := &stubSink{}
	p := New(Config{BatchSize: 100, MaxWaitTime: time.Hour, HighWatermark: 2}, sink)

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})
	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d2"})

	dec, _ := p.PendingCounts()
	assert.Equal(t, 0, dec)
	assert.Equal(t, 2, sink.decisionCount())
}

func TestMaxWaitTimeForcesFlushOnAge(t *testing.T) {
	sink := &stubSink{}
	p := New(Config{BatchSize: 100, MaxWaitTime: 10 * time.Millisecond}, sink)

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})
	time.Sleep(20 * time.Millisecond)
	p.maybeFlush(context.Background(), false)

	dec, _ := p.PendingCounts()
	assert.Equal(t, 0, dec)
}

func TestFailedFlushReBuffersRecords(t *testing.T) {
	sink := &stubSink{failNext: true}
	p := New(Config{BatchSize: 1, MaxWaitTime: time.Hour}, sink)

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})
	dec, _ := p.PendingCounts()
	assert.Equal(t, 0, dec, "re-buffered after failed flush attempt")

	// AddDecisionRecord's flush failed and re-queued the record; a second
	// flush (sink no longer failing) should succeed.
	p.maybeFlush(context.Background(), true)
	assert.Equal(t, 1, sink.decisionCount())
}

func TestStopFlushesRemainingItems(t *testing.T) {
	sink := &stubSink{}
	p := New(Config{BatchSize: 100, MaxWaitTime: time.Hour}, sink)
	p.Start(context.Background())

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})
	p.AddStorageEvent(record.EventRecord{EventID: "e1"})

	p.Stop()

	dec, ev := p.PendingCounts()
	assert.Equal(t, 0, dec)
	assert.Equal(t, 0, ev)
	assert.Equal(t, 1, sink.decisionCount())
	require.Len(t, sink.events, 1)
}

func TestBackgroundTickerFlushesOnAge(t *testing.T) {
	sink := &stubSink{}
	p := New(Config{BatchSize: 100, MaxWaitTime: 20 * time.Millisecond}, sink)
	p.Start(context.Background())
	defer p.Stop()

	p.AddDecisionRecord(record.DecisionRecord{DecisionID: "d1"})

	assert.Eventually(t, func() bool {
		return sink.decisionCount() == 1
	}, time.Second, 5*time.Millisecond)
}

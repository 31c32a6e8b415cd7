package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFIFOOrderSameProducer(t *testing.T) {
	b := NewBus()
	b.Enqueue(Event{EventID: "1"})
	b.Enqueue(Event{EventID: "2"})
	b.Enqueue(Event{EventID: "3"})

	for _, want := range []string{"1", "2", "3"} {
		e, ok := b.Next()
		require.True(t, ok)
		assert.Equal(t, want, e.EventID)
	}
}

func TestBusEnqueueAllPreservesOrder(t *testing.T) {
	b := NewBus()
	b.EnqueueAll([]Event{{EventID: "a"}, {EventID: "b"}})

	e1, _ := b.Next()
	e2, _ := b.Next()
	assert.Equal(t, "a", e1.EventID)
	assert.Equal(t, "b", e2.EventID)
}

func TestBusNextBlocksUntilEnqueue(t *testing.T) {
	b := NewBus()
	done := make(chan Event, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e, ok := b.Next()
		require.True(t, ok)
		done <- e
	}()

	time.Sleep(10 * time.Millisecond)
	b.Enqueue(Event{EventID: "late"})

	select {
	case e := <-done:
		assert.Equal(t, "late", e.EventID)
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Enqueue")
	}
	wg.Wait()
}

func TestBusStopUnblocksNext(t *testing.T) {
	b := NewBus()
	done := make(chan bool, 1)
	go func() {
		_, ok := b.Next()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	b.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Stop")
	}
}

func TestBusEnqueueAfterStopIsDropped(t *testing.T) {
	b := NewBus()
	b.Stop()
	b.Enqueue(Event{EventID: "x"})
	assert.True(t, b.Empty())
}

func TestBusTryNextNonBlocking(t *testing.T) {
	b := NewBus()
	_, ok := b.TryNext()
	assert.False(t, ok)

	b.Enqueue(Event{EventID: "x"})
	e, ok := b.TryNext()
	require.True(t, ok)
	assert.Equal(t, "x", e.EventID)
}

func TestEventWithTimestampOnlySetsWhenZero(t *testing.T) {
	now := time.Now()
	e := Event{}
	e = e.WithTimestamp(now)
	assert.Equal(t, now, e.Timestamp)

	earlier := now.Add(-time.Hour)
	e2 := Event{Timestamp: earlier}
	e2 = e2.WithTimestamp(now)
	assert.Equal(t, earlier, e2.Timestamp)
}

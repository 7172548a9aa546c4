package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memSink records appended batches in memory; the first failCalls Append
// calls fail.
type memSink struct {
	mu        sync.Mutex
	batches   [][]Record
	records   []Record
	failCalls int
	calls     int
}

func (s *memSink) Append(ctx context.Context, batch []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failCalls {
		return errors.New("sink unavailable")
	}
	cp := make([]Record, len(batch))
	copy(cp, batch)
	s.batches = append(s.batches, cp)
	s.records = append(s.records, cp...)
	return nil
}

func (s *memSink) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testRecord(code string) Record {
	return Record{Attrs: map[string]any{"code": code}, Specs: []any{}}
}

func TestBatchPersister_SizeTrigger(t *testing.T) {
	sink := &memSink{}
	pipeline := NewPipeline()
	p := NewBatchPersister(sink, pipeline, 3, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()

	pipeline.Results.Put(testRecord("a"))
	pipeline.Results.Put(testRecord("b"))
	time.Sleep(50 * time.Millisecond)
	if got := sink.batchCount(); got != 0 {
		t.Errorf("flushed %d batches below threshold, want 0", got)
	}

	pipeline.Results.Put(testRecord("c"))
	waitFor(t, 2*time.Second, func() bool { return sink.batchCount() == 1 }, "no flush after reaching threshold")

	if got := sink.recordCount(); got != 3 {
		t.Errorf("flushed %d records, want 3", got)
	}

	joinCtx, jcancel := context.WithTimeout(context.Background(), time.Second)
	defer jcancel()
	if err := pipeline.Results.Join(joinCtx); err != nil {
		t.Errorf("result queue did not drain: %v", err)
	}

	cancel()
	<-done
}

func TestBatchPersister_IdleFlush(t *testing.T) {
	sink := &memSink{}
	pipeline := NewPipeline()
	interval := 50 * time.Millisecond
	p := NewBatchPersister(sink, pipeline, 1000, interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()

	pipeline.Results.Put(testRecord("lonely"))

	// One record far below the threshold must still hit the sink within a
	// small multiple of the interval.
	waitFor(t, 10*interval, func() bool { return sink.recordCount() == 1 }, "idle flush never happened")

	cancel()
	<-done
}

func TestBatchPersister_FailedFlushRetainsBatch(t *testing.T) {
	sink := &memSink{failCalls: 1}
	pipeline := NewPipeline()
	p := NewBatchPersister(sink, pipeline, 2, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()

	pipeline.Results.Put(testRecord("a"))
	pipeline.Results.Put(testRecord("b"))

	// First flush fails; the records stay in the batch. The next record
	// crosses the threshold again and retries with all three.
	waitFor(t, 2*time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.calls == 1
	}, "first flush attempt never happened")

	pipeline.Results.Put(testRecord("c"))
	waitFor(t, 2*time.Second, func() bool { return sink.recordCount() == 3 }, "retry flush never succeeded")

	if got := sink.batchCount(); got != 1 {
		t.Errorf("successful flushes = %d, want 1", got)
	}

	cancel()
	<-done
}

func TestBatchPersister_FinalFlushOnCancel(t *testing.T) {
	sink := &memSink{}
	pipeline := NewPipeline()
	p := NewBatchPersister(sink, pipeline, 1000, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()

	pipeline.Results.Put(testRecord("a"))
	pipeline.Results.Put(testRecord("b"))

	waitFor(t, 2*time.Second, func() bool { return pipeline.Results.Len() == 0 }, "records never consumed")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persister did not stop after cancel")
	}

	if got := sink.recordCount(); got != 2 {
		t.Errorf("final flush persisted %d records, want 2", got)
	}
}

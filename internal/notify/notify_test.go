package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"roofmon/internal/types"
)

type fakeSink struct {
	mu       sync.Mutex
	name     string
	failures int // fail this many calls before succeeding
	calls    int
	recs     []types.StatusRecord
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(_ context.Context, rec types.StatusRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("sink down")
	}
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeSink) delivered() []types.StatusRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.StatusRecord(nil), f.recs...)
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func record(label types.Label) types.StatusRecord {
	return types.StatusRecord{
		Label:      label,
		Confidence: 0.93,
		UpdatedAt:  time.Date(2024, 8, 20, 21, 4, 5, 0, time.UTC),
		FramePath:  "frame.png",
	}
}

func fastRetry(n *Notifier) {
	n.retryOpts = []retry.Option{retry.Attempts(maxAttempts), retry.Delay(time.Millisecond)}
}

func TestTransitionFiltering(t *testing.T) {
	n := New(zap.NewNop())

	steps := []struct {
		label types.Label
		want  bool
	}{
		{types.Unknown, false}, // never notified
		{types.Open, true},     // first known status
		{types.Open, false},
		{types.Closed, true},
		{types.Closed, false},
		{types.Unknown, false},
		{types.Open, true},
	}
	for i, s := range steps {
		if got := n.transition(record(s.label)); got != s.want {
			t.Errorf("step %d (%s): transition = %v, want %v", i, s.label, got, s.want)
		}
	}
}

func TestRunDeliversTransitionsOnly(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	n := New(zap.NewNop(), sink)
	fastRetry(n)

	events := make(chan types.StatusRecord)
	done := make(chan struct{})
	go func() {
		n.Run(context.Background(), events)
		close(done)
	}()

	for _, label := range []types.Label{types.Open, types.Open, types.Open, types.Closed} {
		events <- record(label)
	}
	close(events)
	<-done

	got := sink.delivered()
	if len(got) != 2 {
		t.Fatalf("delivered %d records, want 2", len(got))
	}
	if got[0].Label != types.Open || got[1].Label != types.Closed {
		t.Errorf("delivered labels = %s, %s", got[0].Label, got[1].Label)
	}
	if n.Dropped() != 0 {
		t.Errorf("dropped = %d", n.Dropped())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	n := New(zap.NewNop(), &fakeSink{name: "fake"})
	fastRetry(n)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan types.StatusRecord)
	done := make(chan struct{})
	go func() {
		n.Run(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type blockingSink struct {
	fakeSink
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSink) Publish(ctx context.Context, rec types.StatusRecord) error {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeSink.Publish(ctx, rec)
}

func TestRunDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{
		fakeSink: fakeSink{name: "slow"},
		entered:  make(chan struct{}, 2*queueSize),
		release:  make(chan struct{}),
	}
	n := New(zap.NewNop(), sink)
	fastRetry(n)

	events := make(chan types.StatusRecord)
	done := make(chan struct{})
	go func() {
		n.Run(context.Background(), events)
		close(done)
	}()

	labels := func(i int) types.Label {
		if i%2 == 0 {
			return types.Open
		}
		return types.Closed
	}

	// Park the deliverer inside Publish, then fill the queue. The two
	// transitions after that have nowhere to go.
	events <- record(labels(0))
	<-sink.entered
	for i := 1; i <= queueSize+2; i++ {
		events <- record(labels(i))
	}
	close(events)

	deadline := time.After(2 * time.Second)
	for n.Dropped() < 2 {
		select {
		case <-deadline:
			t.Fatalf("dropped = %d, want 2", n.Dropped())
		case <-time.After(time.Millisecond):
		}
	}
	close(sink.release)
	<-done

	if got := len(sink.delivered()); got != 1+queueSize {
		t.Errorf("delivered = %d, want %d", got, 1+queueSize)
	}
	if n.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", n.Dropped())
	}
}

func TestPublishRetriesFlakySink(t *testing.T) {
	sink := &fakeSink{name: "flaky", failures: 1}
	n := New(zap.NewNop(), sink)
	fastRetry(n)

	n.publish(context.Background(), record(types.Open))

	if sink.callCount() != 2 {
		t.Errorf("calls = %d, want 2", sink.callCount())
	}
	if len(sink.delivered()) != 1 {
		t.Errorf("delivered = %d, want 1", len(sink.delivered()))
	}
}

func TestPublishContinuesPastDeadSink(t *testing.T) {
	dead := &fakeSink{name: "dead", failures: 1 << 30}
	live := &fakeSink{name: "live"}
	n := New(zap.NewNop(), dead, live)
	fastRetry(n)

	n.publish(context.Background(), record(types.Closed))

	if dead.callCount() != maxAttempts {
		t.Errorf("dead sink calls = %d, want %d", dead.callCount(), maxAttempts)
	}
	got := live.delivered()
	if len(got) != 1 || got[0].Label != types.Closed {
		t.Errorf("live sink delivered = %v", got)
	}
}

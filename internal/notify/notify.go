// Package notify fans roof status transitions out to external channels
// (MQTT, Telegram). Delivery runs on its own goroutine so a slow broker
// can never stall the poll loop.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"roofmon/internal/types"
)

const (
	queueSize      = 16
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 15 * time.Second
)

// Sink delivers one status record to an external channel.
type Sink interface {
	Publish(ctx context.Context, rec types.StatusRecord) error
	Name() string
}

// Notifier watches the monitor's event stream and pushes label
// transitions to its sinks. The first known status after startup counts
// as a transition. When delivery cannot keep up, new transitions are
// dropped with a warning rather than queued without bound.
type Notifier struct {
	sinks []Sink
	log   *zap.Logger

	queue     chan types.StatusRecord
	last      types.Label
	dropped   atomic.Uint64
	wg        sync.WaitGroup
	retryOpts []retry.Option
}

func New(log *zap.Logger, sinks ...Sink) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		sinks: sinks,
		log:   log,
		queue: make(chan types.StatusRecord, queueSize),
		retryOpts: []retry.Option{
			retry.Attempts(maxAttempts),
			retry.Delay(initialBackoff),
			retry.MaxDelay(maxBackoff),
		},
	}
}

// Dropped reports how many transitions were discarded because the
// delivery queue was full.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

// Run consumes events until ctx is cancelled or the channel closes.
// Transitions already queued are still delivered after events closes.
func (n *Notifier) Run(ctx context.Context, events <-chan types.StatusRecord) {
	n.wg.Add(1)
	go n.deliver(ctx)
	defer func() {
		close(n.queue)
		n.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-events:
			if !ok {
				return
			}
			if !n.transition(rec) {
				continue
			}
			select {
			case n.queue <- rec:
			default:
				n.dropped.Add(1)
				n.log.Warn("notification queue full, dropping transition",
					zap.String("status", rec.Label.String()))
			}
		}
	}
}

// transition reports whether rec changes the last notified label.
// Only Run's goroutine calls it.
func (n *Notifier) transition(rec types.StatusRecord) bool {
	if !rec.Known() || rec.Label == n.last {
		return false
	}
	n.last = rec.Label
	return true
}

func (n *Notifier) deliver(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-n.queue:
			if !ok {
				return
			}
			n.publish(ctx, rec)
		}
	}
}

func (n *Notifier) publish(ctx context.Context, rec types.StatusRecord) {
	for _, sink := range n.sinks {
		err := retry.Do(func() error {
			return sink.Publish(ctx, rec)
		}, n.retryOpts...)
		if err != nil {
			n.log.Error("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("status", rec.Label.String()),
				zap.Error(err))
			continue
		}
		n.log.Info("notification delivered",
			zap.String("sink", sink.Name()),
			zap.String("status", rec.Label.String()))
	}
}

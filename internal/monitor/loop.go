// Package monitor runs the poll loop that turns camera frames into roof
// status: find the newest frame, classify it, apply safety overrides,
// publish the result. One poll at a time, every interval, forever.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"roofmon/internal/secondary"
	"roofmon/internal/status"
	"roofmon/internal/types"
)

// State is the loop lifecycle as seen by diagnostics.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateStopped:
		return "STOPPED"
	default:
		return "IDLE"
	}
}

// outcome classifies one poll for tests and metrics.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeBusy
)

// FrameSource yields the newest camera frame, if any.
type FrameSource interface {
	Latest() (types.Frame, bool, error)
}

// Classifier scores one frame.
type Classifier interface {
	Classify(types.Frame) (types.ClassificationResult, error)
}

// SunGuard reports whether an open roof is acceptable right now.
type SunGuard interface {
	SafeForOpen(t time.Time) (bool, float64)
}

// LogAppender writes one status line per call.
type LogAppender interface {
	Append(types.LogEntry) error
}

// Config wires a Loop. Guard and Secondary are optional.
type Config struct {
	Source       FrameSource
	Classifier   Classifier
	Store        *status.Store
	Logbook      LogAppender
	Guard        SunGuard
	Secondary    secondary.Source
	Interval     time.Duration
	LogUnchanged bool
	Logger       *zap.Logger
}

// Loop polls on a fixed interval. Errors are counted and logged, never
// fatal: the next tick always gets its chance.
type Loop struct {
	source       FrameSource
	classifier   Classifier
	store        *status.Store
	logbook      LogAppender
	guard        SunGuard
	secondary    secondary.Source
	interval     time.Duration
	logUnchanged bool
	log          *zap.Logger

	metrics Metrics
	events  chan types.StatusRecord

	inFlight  atomic.Bool
	state     atomic.Int32
	sunAlt    atomic.Uint64
	hasSunAlt atomic.Bool

	mu        sync.Mutex
	lastFrame types.Frame
	secLabel  types.Label
	secAt     time.Time
	secErr    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loop{
		source:       cfg.Source,
		classifier:   cfg.Classifier,
		store:        cfg.Store,
		logbook:      cfg.Logbook,
		guard:        cfg.Guard,
		secondary:    cfg.Secondary,
		interval:     cfg.Interval,
		logUnchanged: cfg.LogUnchanged,
		log:          cfg.Logger,
		events:       make(chan types.StatusRecord, 16),
	}
}

// Events carries a StatusRecord after every successful poll. Sends are
// non-blocking; slow consumers miss updates rather than stall the loop.
func (l *Loop) Events() <-chan types.StatusRecord { return l.events }

func (l *Loop) Metrics() *Metrics { return &l.metrics }

func (l *Loop) State() State { return State(l.state.Load()) }

// SunAltitude returns the altitude computed on the most recent guarded
// poll. ok is false until the guard has run once.
func (l *Loop) SunAltitude() (alt float64, ok bool) {
	if !l.hasSunAlt.Load() {
		return 0, false
	}
	return math.Float64frombits(l.sunAlt.Load()), true
}

// Secondary returns the last corroboration reading. ok is false when no
// secondary source is configured.
func (l *Loop) Secondary() (label types.Label, at time.Time, readErr string, ok bool) {
	if l.secondary == nil {
		return types.Unknown, time.Time{}, "", false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.secLabel, l.secAt, l.secErr, true
}

// Start launches the loop: one poll immediately, then one per interval.
func (l *Loop) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(runCtx)
}

// Stop halts the ticker, waits for any in-flight poll, and leaves the
// loop stopped. Safe to call more than once.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer l.state.Store(int32(StateStopped))

	l.log.Info("monitor loop started",
		zap.Duration("interval", l.interval),
		zap.Bool("log_unchanged", l.logUnchanged))

	l.poll(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("monitor loop stopped")
			return
		case <-ticker.C:
			l.poll(ctx)
			// A tick that landed while the poll ran is stale: drop it
			// instead of polling twice back to back.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (l *Loop) poll(ctx context.Context) outcome {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.metrics.pollsDropped.Add(1)
		return outcomeBusy
	}
	defer l.inFlight.Store(false)

	l.state.Store(int32(StatePolling))
	defer l.state.Store(int32(StateIdle))

	l.metrics.polls.Add(1)

	frame, ok, err := l.source.Latest()
	if err != nil {
		return l.fail(fmt.Errorf("scan frames: %w", err))
	}
	if !ok {
		l.metrics.skippedNoFrame.Add(1)
		l.restamp()
		return outcomeSkipped
	}

	l.mu.Lock()
	same := frame.Same(l.lastFrame)
	l.mu.Unlock()
	if same {
		l.metrics.skippedSameFrame.Add(1)
		l.restamp()
		return outcomeSkipped
	}

	start := time.Now()
	res, err := l.classifier.Classify(frame)
	l.metrics.classifyCount.Add(1)
	l.metrics.classifyNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		return l.fail(fmt.Errorf("classify %s: %w", frame.Path, err))
	}

	l.applySunGuard(&res)
	l.corroborate(ctx, res.Label)

	prev := l.store.Snapshot()
	l.store.Update(res)
	if prev.Label != res.Label {
		l.metrics.transitions.Add(1)
		l.log.Info("roof status changed",
			zap.String("from", prev.Label.String()),
			zap.String("to", res.Label.String()),
			zap.Float64("confidence", res.Confidence),
			zap.String("frame", res.FramePath))
	}

	l.appendLine(types.LogEntry{Timestamp: res.EvaluatedAt, Label: res.Label})

	l.mu.Lock()
	l.lastFrame = frame
	l.mu.Unlock()

	l.metrics.pollsSuccess.Add(1)
	l.emit(l.store.Snapshot())
	return outcomeSuccess
}

func (l *Loop) fail(err error) outcome {
	l.metrics.pollsFailed.Add(1)
	l.store.SetError(err)
	l.log.Warn("poll failed", zap.Error(err))
	return outcomeFailed
}

// restamp re-writes the current status line on skipped polls so the
// status file doubles as a liveness record. Off when log_unchanged is
// false; UNKNOWN never hits the file.
func (l *Loop) restamp() {
	if !l.logUnchanged {
		return
	}
	rec := l.store.Snapshot()
	if !rec.Known() {
		return
	}
	l.appendLine(types.LogEntry{Timestamp: time.Now(), Label: rec.Label})
}

func (l *Loop) appendLine(e types.LogEntry) {
	if l.logbook == nil {
		return
	}
	if err := l.logbook.Append(e); err != nil {
		l.metrics.statusFileErr.Add(1)
		l.log.Error("status file append failed", zap.Error(err))
		return
	}
	l.metrics.statusFileOK.Add(1)
}

// applySunGuard can flip an OPEN verdict to CLOSED when the sun is too
// high for an open roof. The raw label survives in the result for
// diagnostics.
func (l *Loop) applySunGuard(res *types.ClassificationResult) {
	if l.guard == nil {
		return
	}
	safe, alt := l.guard.SafeForOpen(res.EvaluatedAt)
	l.sunAlt.Store(math.Float64bits(alt))
	l.hasSunAlt.Store(true)

	if res.Label != types.Open || safe {
		return
	}
	res.Label = types.Closed
	res.Override = fmt.Sprintf("sun altitude %.1f deg too high for open roof", alt)
	l.metrics.sunOverrides.Add(1)
	l.log.Info("sun guard forced CLOSED",
		zap.Float64("altitude_deg", alt),
		zap.Float64("confidence", res.Confidence))
}

// corroborate asks the secondary source for its opinion. Disagreement is
// logged and counted, never acted on.
func (l *Loop) corroborate(ctx context.Context, primary types.Label) {
	if l.secondary == nil {
		return
	}
	label, at, err := l.secondary.Read(ctx)
	l.metrics.secondaryReads.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.metrics.secondaryErrs.Add(1)
		l.secErr = err.Error()
		l.log.Debug("secondary source read failed",
			zap.String("source", l.secondary.Name()),
			zap.Error(err))
		return
	}
	l.secLabel, l.secAt, l.secErr = label, at, ""
	if label != types.Unknown && label != primary {
		l.metrics.secondaryDiffs.Add(1)
		l.log.Warn("secondary source disagrees",
			zap.String("source", l.secondary.Name()),
			zap.String("secondary", label.String()),
			zap.String("camera", primary.String()))
	}
}

func (l *Loop) emit(rec types.StatusRecord) {
	select {
	case l.events <- rec:
	default:
		l.metrics.eventsDropped.Add(1)
	}
}

package monitor

import "sync/atomic"

// Metrics counts what the poll loop does. Everything is atomic so the
// diagnostics endpoint can snapshot without touching the loop.
type Metrics struct {
	polls            atomic.Uint64
	pollsSuccess     atomic.Uint64
	pollsFailed      atomic.Uint64
	skippedNoFrame   atomic.Uint64
	skippedSameFrame atomic.Uint64
	pollsDropped     atomic.Uint64
	transitions      atomic.Uint64
	sunOverrides     atomic.Uint64
	statusFileOK     atomic.Uint64
	statusFileErr    atomic.Uint64
	classifyCount    atomic.Uint64
	classifyNanos    atomic.Uint64
	secondaryReads   atomic.Uint64
	secondaryErrs    atomic.Uint64
	secondaryDiffs   atomic.Uint64
	eventsDropped    atomic.Uint64
}

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"polls_total":              m.polls.Load(),
		"polls_success_total":      m.pollsSuccess.Load(),
		"polls_failed_total":       m.pollsFailed.Load(),
		"skipped_no_frame_total":   m.skippedNoFrame.Load(),
		"skipped_same_frame_total": m.skippedSameFrame.Load(),
		"polls_dropped_total":      m.pollsDropped.Load(),
		"transitions_total":        m.transitions.Load(),
		"sun_overrides_total":      m.sunOverrides.Load(),
		"status_file_ok_total":     m.statusFileOK.Load(),
		"status_file_err_total":    m.statusFileErr.Load(),
		"classify_total":           m.classifyCount.Load(),
		"classify_nanos_total":     m.classifyNanos.Load(),
		"secondary_reads_total":    m.secondaryReads.Load(),
		"secondary_err_total":      m.secondaryErrs.Load(),
		"secondary_diff_total":     m.secondaryDiffs.Load(),
		"events_dropped_total":     m.eventsDropped.Load(),
	}
}

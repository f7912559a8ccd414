package alpaca

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"roofmon/internal/types"
)

// device rejects requests for any device number we do not serve. Alpaca
// wants a plain HTTP 400 here, not an envelope.
func (s *Server) device(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("device"))
		if err != nil || n != s.cfg.DeviceNumber {
			http.Error(w, "invalid device number", http.StatusBadRequest)
			return
		}
		next(w, r)
	}
}

// constant serves a fixed-value property.
func (s *Server) constant(value any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, parseParams(r), value, 0, "")
	}
}

// notImplemented serves the PUT methods a SafetyMonitor has no use for.
func (s *Server) notImplemented(param string, value any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r)
		name, _ := p.get(param)
		s.respond(w, p, value, errNotImplemented,
			fmt.Sprintf("%s %q is not implemented", param, name))
	}
}

func (s *Server) handleConnectedGet(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), s.connected.Load(), 0, "")
}

func (s *Server) handleConnectedPut(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r)
	raw, ok := p.get("Connected")
	if !ok {
		http.Error(w, "missing Connected parameter", http.StatusBadRequest)
		return
	}
	value, err := parseBool(raw)
	if err != nil {
		http.Error(w, "invalid Connected value", http.StatusBadRequest)
		return
	}
	s.connected.Store(value)
	s.log.Info("ascom client connection changed", zap.Bool("connected", value))
	s.respond(w, p, nil, 0, "")
}

// safeNow maps the status record onto the single boolean ASCOM cares
// about. Unknown, stale, or disconnected all read unsafe.
func (s *Server) safeNow(rec types.StatusRecord) bool {
	if !s.connected.Load() || !rec.Known() {
		return false
	}
	if rec.Stale(s.now(), s.cfg.StaleAfter.Std()) {
		return false
	}
	if s.cfg.SafeWhen == "open" {
		return rec.Label == types.Open
	}
	return rec.Label == types.Closed
}

func (s *Server) handleIsSafe(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), s.safeNow(s.store.Snapshot()), 0, "")
}

func (s *Server) handleLastUpdate(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), formatTime(s.store.Snapshot().UpdatedAt), 0, "")
}

// handleDeviceStatus is an extension beyond the ASCOM surface: one call
// with everything a dashboard or conformance debug session wants.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	rec := s.store.Snapshot()

	raw := rec.Label
	override := ""
	if hist := s.store.History(); len(hist) > 0 {
		last := hist[len(hist)-1]
		raw = last.RawLabel
		override = last.Override
	}

	value := map[string]any{
		"IsSafe":      s.safeNow(rec),
		"Connected":   s.connected.Load(),
		"RoofStatus":  rec.Label.String(),
		"RawStatus":   raw.String(),
		"Override":    override,
		"Confidence":  rec.Confidence,
		"Consecutive": rec.Consecutive,
		"Evaluations": rec.Evaluations,
		"LastUpdate":  formatTime(rec.UpdatedAt),
		"LastError":   rec.LastError,
		"Stale":       rec.Stale(s.now(), s.cfg.StaleAfter.Std()),
	}
	if s.sunFn != nil {
		if alt, ok := s.sunFn(); ok {
			value["SunAltitude"] = alt
		}
	}
	s.respond(w, parseParams(r), value, 0, "")
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	endpoint := r.PathValue("endpoint")
	s.log.Warn("unknown device endpoint",
		zap.String("method", r.Method),
		zap.String("endpoint", endpoint))
	s.respond(w, parseParams(r), nil, errNotImplemented, "unknown endpoint: "+endpoint)
}

// Package alpaca serves the roof status as an ASCOM Alpaca
// SafetyMonitor device, plus a small diagnostics surface (health,
// status JSON, websocket push) for dashboards.
package alpaca

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roofmon/internal/config"
	"roofmon/internal/status"
	"roofmon/internal/types"
)

//go:embed web/*
var webFS embed.FS

var setupTmpl = template.Must(template.ParseFS(webFS, "web/setup.html"))

const (
	deviceName        = "Roofmon Safety Monitor"
	deviceDescription = "Safety monitor derived from sky-camera roof classification"
	driverVersion     = "1.0.0"
	interfaceVersion  = 1
	serverDescription = "Roofmon Alpaca Server"
	manufacturer      = "roofmon"
)

// errNotImplemented is the Alpaca reserved code 0x400. Protocol-level
// problems (bad device number, malformed PUT parameters) get HTTP 400
// instead of an envelope code.
const errNotImplemented = 0x400

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// response is the Alpaca JSON envelope. ClientTransactionID is echoed
// only when the client sent one.
type response struct {
	Value               any     `json:"Value"`
	ClientTransactionID *uint32 `json:"ClientTransactionID,omitempty"`
	ServerTransactionID uint32  `json:"ServerTransactionID"`
	ErrorNumber         int     `json:"ErrorNumber"`
	ErrorMessage        string  `json:"ErrorMessage"`
}

// Options carries the optional wiring for a Server.
type Options struct {
	Logger *zap.Logger
	// StatusFn supplies extra diagnostics merged into GET /status.
	StatusFn func() map[string]any
	// SunFn reports the last computed sun altitude, if any guard runs.
	SunFn func() (float64, bool)
}

// Server exposes one SafetyMonitor device. Handlers answer from the
// status store snapshot and never block on I/O.
type Server struct {
	cfg      config.AlpacaConfig
	store    *status.Store
	log      *zap.Logger
	statusFn func() map[string]any
	sunFn    func() (float64, bool)

	deviceID  string
	connected atomic.Bool
	txn       atomic.Uint32
	now       func() time.Time

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]*sync.Mutex
}

func New(cfg config.AlpacaConfig, store *status.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		log:      opts.Logger,
		statusFn: opts.StatusFn,
		sunFn:    opts.SunFn,
		deviceID: uuid.NewString(),
		now:      time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Run serves HTTP until ctx is cancelled, broadcasting records from
// events to websocket clients along the way.
func (s *Server) Run(ctx context.Context, events <-chan types.StatusRecord) error {
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.broadcast(ctx, events)
	if s.cfg.Discovery {
		go s.runDiscovery(ctx)
	}

	s.log.Info("alpaca server listening",
		zap.Int("port", s.cfg.Port),
		zap.Int("device_number", s.cfg.DeviceNumber),
		zap.String("safe_when", s.cfg.SafeWhen))
	return httpServer.ListenAndServe()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /management/apiversions", s.handleAPIVersions)
	mux.HandleFunc("GET /management/v1/description", s.handleServerDescription)
	mux.HandleFunc("GET /management/v1/configureddevices", s.handleConfiguredDevices)
	mux.HandleFunc("GET /setup", s.handleSetup)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleDiagnostics)
	mux.HandleFunc("GET /ws", s.handleWS)

	base := "/api/v1/safetymonitor/{device}/"
	mux.HandleFunc("GET "+base+"connected", s.device(s.handleConnectedGet))
	mux.HandleFunc("PUT "+base+"connected", s.device(s.handleConnectedPut))
	mux.HandleFunc("GET "+base+"issafe", s.device(s.handleIsSafe))
	mux.HandleFunc("GET "+base+"name", s.device(s.constant(deviceName)))
	mux.HandleFunc("GET "+base+"description", s.device(s.constant(deviceDescription)))
	mux.HandleFunc("GET "+base+"driverinfo", s.device(s.constant(deviceName+" v"+driverVersion)))
	mux.HandleFunc("GET "+base+"driverversion", s.device(s.constant(driverVersion)))
	mux.HandleFunc("GET "+base+"interfaceversion", s.device(s.constant(interfaceVersion)))
	mux.HandleFunc("GET "+base+"supportedactions", s.device(s.constant([]string{})))
	mux.HandleFunc("PUT "+base+"action", s.device(s.notImplemented("Action", "")))
	mux.HandleFunc("PUT "+base+"commandblind", s.device(s.notImplemented("Command", nil)))
	mux.HandleFunc("PUT "+base+"commandbool", s.device(s.notImplemented("Command", false)))
	mux.HandleFunc("PUT "+base+"commandstring", s.device(s.notImplemented("Command", "")))
	mux.HandleFunc("GET "+base+"lastupdate", s.device(s.handleLastUpdate))
	mux.HandleFunc("GET "+base+"status", s.device(s.handleDeviceStatus))
	mux.HandleFunc(base+"{endpoint...}", s.device(s.handleUnknown))

	return mux
}

// respond writes the Alpaca envelope with a fresh server transaction id.
func (s *Server) respond(w http.ResponseWriter, p params, value any, errNum int, errMsg string) {
	resp := response{
		Value:               value,
		ServerTransactionID: s.txn.Add(1),
		ErrorNumber:         errNum,
		ErrorMessage:        errMsg,
	}
	if id, ok := p.clientTxnID(); ok {
		resp.ClientTransactionID = &id
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleAPIVersions(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), []int{1}, 0, "")
}

func (s *Server) handleServerDescription(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), map[string]string{
		"ServerName":          serverDescription,
		"Manufacturer":        manufacturer,
		"ManufacturerVersion": driverVersion,
		"Location":            "Observatory",
	}, 0, "")
}

func (s *Server) handleConfiguredDevices(w http.ResponseWriter, r *http.Request) {
	s.respond(w, parseParams(r), []map[string]any{{
		"DeviceName":   deviceName,
		"DeviceType":   "SafetyMonitor",
		"DeviceNumber": s.cfg.DeviceNumber,
		"UniqueID":     s.deviceID,
	}}, 0, "")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"record":    s.store.Snapshot(),
		"connected": s.connected.Load(),
	}
	if s.statusFn != nil {
		for k, v := range s.statusFn() {
			payload[k] = v
		}
	}
	payload["ws_clients"] = s.clientCount()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

type setupData struct {
	DeviceName    string
	DeviceNumber  int
	Port          int
	DriverVersion string
	SafeWhen      string
	Connected     bool
	IsSafe        bool
	RoofStatus    string
	LastUpdate    string
}

func (s *Server) handleSetup(w http.ResponseWriter, _ *http.Request) {
	rec := s.store.Snapshot()
	data := setupData{
		DeviceName:    deviceName,
		DeviceNumber:  s.cfg.DeviceNumber,
		Port:          s.cfg.Port,
		DriverVersion: driverVersion,
		SafeWhen:      s.cfg.SafeWhen,
		Connected:     s.connected.Load(),
		IsSafe:        s.safeNow(rec),
		RoofStatus:    rec.Label.String(),
		LastUpdate:    formatTime(rec.UpdatedAt),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := setupTmpl.Execute(w, data); err != nil {
		s.log.Error("render setup page", zap.Error(err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, s.store.Snapshot())

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcast(ctx context.Context, events <-chan types.StatusRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			var stale []*websocket.Conn
			s.mu.Lock()
			for conn, writeMu := range s.clients {
				if err := s.writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
					stale = append(stale, conn)
				}
			}
			s.mu.Unlock()
			for _, conn := range stale {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

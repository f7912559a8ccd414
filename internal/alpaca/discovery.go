package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"net"

	"go.uber.org/zap"
)

// Alpaca discovery: clients broadcast "alpacadiscovery1" on UDP 32227
// and servers answer with the port their HTTP API listens on.
const (
	DiscoveryPort    = 32227
	discoveryMessage = "alpacadiscovery1"
)

func (s *Server) runDiscovery(ctx context.Context) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: DiscoveryPort})
	if err != nil {
		s.log.Warn("discovery responder disabled", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	s.log.Info("discovery responder started", zap.Int("port", DiscoveryPort))
	s.serveDiscovery(conn)
}

func (s *Server) serveDiscovery(conn *net.UDPConn) {
	buf := make([]byte, 1024)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Closed on shutdown.
			return
		}
		if !bytes.HasPrefix(buf[:n], []byte(discoveryMessage)) {
			continue
		}
		payload, err := json.Marshal(map[string]int{"AlpacaPort": s.cfg.Port})
		if err != nil {
			continue
		}
		if _, err := conn.WriteToUDP(payload, remote); err != nil {
			s.log.Debug("discovery reply failed",
				zap.String("remote", remote.String()),
				zap.Error(err))
		}
	}
}

// Package ingest receives camera frames over ZeroMQ and drops them into
// the monitored directory, where the poll loop treats them like any
// other capture.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

// Bridge binds a PULL socket and writes every valid frame envelope it
// receives into the watch directory.
type Bridge struct {
	endpoint string
	dir      string
	log      *zap.Logger

	written  atomic.Uint64
	rejected atomic.Uint64
}

func New(endpoint, dir string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{endpoint: endpoint, dir: dir, log: log}
}

// Counts reports how many frames were written and rejected so far.
func (b *Bridge) Counts() (written, rejected uint64) {
	return b.written.Load(), b.rejected.Load()
}

// Run receives until ctx is cancelled. The receive timeout bounds how
// long cancellation waits for a quiet socket.
func (b *Bridge) Run(ctx context.Context) error {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return fmt.Errorf("bridge socket: %w", err)
	}
	defer socket.Close()

	if err := socket.SetRcvtimeo(time.Second); err != nil {
		return fmt.Errorf("bridge socket timeout: %w", err)
	}
	if err := socket.Bind(b.endpoint); err != nil {
		return fmt.Errorf("bridge bind %s: %w", b.endpoint, err)
	}

	b.log.Info("camera bridge listening",
		zap.String("endpoint", b.endpoint),
		zap.String("dir", b.dir))

	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := socket.RecvBytes(0)
		if err != nil {
			// Receive timeout tick; real socket errors also land
			// here and the next receive retries.
			continue
		}
		path, err := b.handle(msg)
		if err != nil {
			b.rejected.Add(1)
			b.log.Warn("bridge frame rejected", zap.Error(err))
			continue
		}
		if n := b.written.Add(1); n%100 == 1 {
			b.log.Info("bridge frame written",
				zap.String("path", path),
				zap.Uint64("total", n))
		}
	}
}

func (b *Bridge) handle(msg []byte) (string, error) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		return "", err
	}
	return writeFrame(b.dir, env)
}

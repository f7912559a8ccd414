package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// frameEnvelope is the CBOR message a camera pushes over the bridge.
// CapturedAt is unix milliseconds; zero means "stamp on arrival".
type frameEnvelope struct {
	Type       string `cbor:"type"`
	Name       string `cbor:"name"`
	CapturedAt int64  `cbor:"captured_at"`
	Format     string `cbor:"format"`
	Data       []byte `cbor:"data"`
}

func (e frameEnvelope) capturedTime() time.Time {
	if e.CapturedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.CapturedAt)
}

func decodeEnvelope(msg []byte) (frameEnvelope, error) {
	var env frameEnvelope
	if err := cbor.Unmarshal(msg, &env); err != nil {
		return frameEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != "frame" {
		return frameEnvelope{}, fmt.Errorf("unexpected message type %q", env.Type)
	}
	if env.Name == "" {
		return frameEnvelope{}, errors.New("envelope missing name")
	}
	switch env.Format {
	case "png", "jpg", "jpeg":
	default:
		return frameEnvelope{}, fmt.Errorf("unsupported frame format %q", env.Format)
	}
	if len(env.Data) == 0 {
		return frameEnvelope{}, errors.New("envelope has no frame data")
	}
	return env, nil
}

// writeFrame lands the frame in dir under the envelope's base name.
// The temp file carries no image extension, so a concurrent directory
// scan never sees a half-written frame; the rename makes it visible
// whole, already stamped with its capture time.
func writeFrame(dir string, env frameEnvelope) (string, error) {
	name := filepath.Base(env.Name)
	if filepath.Ext(name) == "" {
		name += "." + env.Format
	}

	tmp, err := os.CreateTemp(dir, ".bridge-*")
	if err != nil {
		return "", fmt.Errorf("frame temp file: %w", err)
	}
	if _, err := tmp.Write(env.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write frame %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close frame %s: %w", name, err)
	}
	if t := env.capturedTime(); !t.IsZero() {
		if err := os.Chtimes(tmp.Name(), t, t); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("stamp frame %s: %w", name, err)
		}
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publish frame %s: %w", name, err)
	}
	return path, nil
}

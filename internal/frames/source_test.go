package frames

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

func TestLatestPicksNewestByModTime(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, name := range []string{"old.png", "mid.png", "new.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p)
		touch(t, p, base.Add(time.Duration(i)*time.Minute))
	}

	src := NewSource(dir, []string{".png"})
	frame, ok, err := src.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatal("expected a frame")
	}
	if filepath.Base(frame.Path) != "new.png" {
		t.Errorf("picked %s, want new.png", frame.Path)
	}
}

func TestLatestTieBreaksByName(t *testing.T) {
	dir := t.TempDir()
	at := time.Now().Add(-time.Minute).Truncate(time.Second)
	for _, name := range []string{"frame_0002.png", "frame_0001.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p)
		touch(t, p, at)
	}

	frame, ok, err := NewSource(dir, []string{".png"}).Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if filepath.Base(frame.Path) != "frame_0002.png" {
		t.Errorf("picked %s, want frame_0002.png", frame.Path)
	}
}

func TestLatestEmptyDirIsNotAnError(t *testing.T) {
	frame, ok, err := NewSource(t.TempDir(), []string{".png"}).Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok || !frame.Zero() {
		t.Errorf("expected no frame, got %+v", frame)
	}
}

func TestLatestSkipsNonMatchesAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "archive")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(sub, "nested.png"))

	_, ok, err := NewSource(dir, []string{".png"}).Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Error("nested or non-image files should not match")
	}
}

func TestLatestMatchesExtensionCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ALLSKY.PNG"))

	frame, ok, err := NewSource(dir, []string{".png"}).Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if filepath.Base(frame.Path) != "ALLSKY.PNG" {
		t.Errorf("picked %s", frame.Path)
	}
}

func TestLatestMissingDir(t *testing.T) {
	_, _, err := NewSource(filepath.Join(t.TempDir(), "gone"), []string{".png"}).Latest()
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good)

	if _, err := Decode(good); err != nil {
		t.Fatalf("Decode valid png: %v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bad); !errors.Is(err, ErrFrameUnreadable) {
		t.Errorf("corrupt file err = %v, want ErrFrameUnreadable", err)
	}

	if _, err := Decode(filepath.Join(dir, "missing.png")); !errors.Is(err, ErrFrameUnreadable) {
		t.Errorf("missing file err = %v, want ErrFrameUnreadable", err)
	}
}

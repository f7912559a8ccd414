package frames

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ErrFrameUnreadable marks a frame file that could not be read or
// decoded, typically because the camera is still writing it. The next
// poll sees the finished file.
var ErrFrameUnreadable = errors.New("frame unreadable")

// Decode reads and decodes one frame file.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFrameUnreadable, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFrameUnreadable, path, err)
	}
	return img, nil
}

// Package imgcheck sniffs uploaded bytes before any provider quota is spent.
package imgcheck

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// MaxImageBytes bounds what we are willing to send to the provider.
const MaxImageBytes = 8 << 20

// ErrNotAnImage means the bytes cannot be decoded with any registered format.
var ErrNotAnImage = errors.New("unsupported image format")

// Info describes a decodable image.
type Info struct {
	Format string
	Width  int
	Height int
}

// Check decodes the image header. Undecodable or oversized input is a
// permanently-invalid recognition input, so callers can fail the image
// without burning retry budget.
func Check(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, errors.New("empty image")
	}
	if len(data) > MaxImageBytes {
		return Info{}, fmt.Errorf("image too large: %d bytes (max %d)", len(data), MaxImageBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Package artwork downloads and processes album cover art.
//
// Covers are fetched once per album and reused for every track of that
// album through the cache index's cover path. All artwork work is
// best-effort: a failed cover never fails a track download.
package artwork

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
)

// Fetcher downloads one absolute URL. Satisfied by upstream.Client.
type Fetcher interface {
	FetchURL(ctx context.Context, url string) ([]byte, error)
}

// Service fetches cover art and normalizes it to bounded JPEG.
type Service struct {
	fetcher Fetcher
	logger  *log.Logger
	maxSize int
}

// NewService creates an artwork Service. maxSize bounds both cover
// dimensions in pixels; zero or negative disables resizing.
func NewService(fetcher Fetcher, maxSize int, logger *log.Logger) *Service {
	return &Service{fetcher: fetcher, logger: logger, maxSize: maxSize}
}

// Fetch downloads a cover and returns it resized to the configured
// bounding box and re-encoded as JPEG.
func (s *Service) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := s.fetcher.FetchURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if s.maxSize > 0 {
		return resizeToJPEG(data, s.maxSize, s.maxSize)
	}
	return convertToJPEG(data)
}

// resizeToJPEG scales an image down to fit within maxWidth x maxHeight,
// preserving aspect ratio, and encodes it as JPEG. Images already inside
// the box are only re-encoded.
func resizeToJPEG(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			width = int(float64(maxHeight) * ratio)
			height = maxHeight
		} else {
			height = int(float64(maxWidth) / ratio)
			width = maxWidth
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	// Catmull-Rom for quality over speed; covers are small and rare.
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func convertToJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

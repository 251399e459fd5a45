// Package preview derives the thumbnail and web preview renditions of an
// uploaded image using libvips.
package preview

import (
	"github.com/h2non/bimg"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

const (
	ThumbnailBox   = 256
	previewQuality = 75
)

// Error is the error class for image processing failures.
var Error = errs.Class("preview")

// ErrUnsupported is returned by Inspect when the bytes are not a decodable image.
var ErrUnsupported = errs.Class("unsupported image")

// Info holds the properties read from the original image.
type Info struct {
	Width  int
	Height int
	Format string
}

type Transformer struct {
	log *zap.Logger
}

func NewTransformer(log *zap.Logger) *Transformer {
	return &Transformer{log: log}
}

func (t *Transformer) Inspect(data []byte) (Info, error) {
	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return Info{}, ErrUnsupported.Wrap(err)
	}
	if meta.Size.Width <= 0 || meta.Size.Height <= 0 {
		return Info{}, ErrUnsupported.New("image has no dimensions")
	}
	return Info{
		Width:  meta.Size.Width,
		Height: meta.Size.Height,
		Format: meta.Type,
	}, nil
}

// Thumbnail scales the image into a 256x256 box keeping its aspect ratio
// and original encoding. Images with either side at or below the box size
// are re-encoded at their original size.
func (t *Transformer) Thumbnail(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, Error.New("failed to get image size: %w", err)
	}

	width, height := ThumbnailSize(size.Width, size.Height)

	processed, err := image.Process(bimg.Options{
		Width:  width,
		Height: height,
		Force:  true,
	})
	if err != nil {
		return nil, Error.New("failed to create thumbnail: %w", err)
	}

	t.log.Debug("thumbnail created",
		zap.Int("width", width), zap.Int("height", height), zap.Int("bytes", len(processed)))
	return processed, nil
}

// Preview re-encodes the image as WEBP at full size.
func (t *Transformer) Preview(data []byte) ([]byte, error) {
	processed, err := bimg.NewImage(data).Process(bimg.Options{
		Quality: previewQuality,
		Type:    bimg.WEBP,
	})
	if err != nil {
		return nil, Error.New("failed to create preview: %w", err)
	}
	return processed, nil
}

// ThumbnailSize returns the thumbnail dimensions for an image of width x height.
// Either side at or below ThumbnailBox keeps the original size.
func ThumbnailSize(width, height int) (int, int) {
	if width <= ThumbnailBox || height <= ThumbnailBox {
		return width, height
	}
	return calculateNewDimensions(width, height, ThumbnailBox)
}

func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return max(newWidth, 1), max(newHeight, 1)
}

// Package upload turns an uploaded file or a remote URL into a stored
// original plus its thumbnail and preview renditions.
package upload

import (
	"context"
	"io"
	"path"
	"strings"

	"picturehub/internal/apperr"
)

// MaxFileSize is the hard limit for originals from any source.
const MaxFileSize int64 = 2 * 1024 * 1024

var allowedExtensions = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"webp": true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// SourceAdapter hides where the original bytes come from.
type SourceAdapter interface {
	// Validate rejects the source before anything is written.
	Validate(ctx context.Context) error
	OriginalFilename() string
	// Materialize copies the original into w and returns the byte count.
	Materialize(ctx context.Context, w io.Writer) (int64, error)
}

// NewSourceAdapter picks the adapter for input: *FileInput for multipart
// uploads and string for remote URLs.
func NewSourceAdapter(input any) (SourceAdapter, error) {
	switch v := input.(type) {
	case *FileInput:
		if v == nil {
			return nil, apperr.InvalidInput("file is required")
		}
		return &fileSource{input: v}, nil
	case string:
		return newURLSource(v, defaultHTTPClient), nil
	default:
		return nil, apperr.InvalidInput("unsupported upload source %T", input)
	}
}

// extension returns the lower-cased suffix of name without any query part.
func extension(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return ext
}

func baseName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i > 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// copyLimited copies at most MaxFileSize bytes and fails when r has more.
func copyLimited(w io.Writer, r io.Reader) (int64, error) {
	n, err := io.Copy(w, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return n, err
	}
	if n > MaxFileSize {
		return n, apperr.InvalidInput("file size must not exceed 2 MB")
	}
	return n, nil
}

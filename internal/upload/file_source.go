package upload

import (
	"context"
	"io"

	"picturehub/internal/apperr"
)

// FileInput is a multipart upload as received by the HTTP layer.
type FileInput struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type fileSource struct {
	input *FileInput
}

func (s *fileSource) Validate(context.Context) error {
	if s.input.Reader == nil {
		return apperr.InvalidInput("file is required")
	}
	if s.input.Size <= 0 {
		return apperr.InvalidInput("file is empty")
	}
	if s.input.Size > MaxFileSize {
		return apperr.InvalidInput("file size must not exceed 2 MB")
	}
	if !allowedExtensions[extension(s.input.Filename)] {
		return apperr.InvalidInput("unsupported file type")
	}
	return nil
}

func (s *fileSource) OriginalFilename() string {
	return s.input.Filename
}

func (s *fileSource) Materialize(_ context.Context, w io.Writer) (int64, error) {
	n, err := copyLimited(w, s.input.Reader)
	if err != nil {
		if apperr.IsKind(err, apperr.KindInvalidInput) {
			return n, err
		}
		return n, apperr.Upstream(err, "failed to read uploaded file")
	}
	return n, nil
}

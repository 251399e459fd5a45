package upload

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"picturehub/internal/apperr"
)

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

type urlSource struct {
	raw    string
	client *http.Client
}

func newURLSource(raw string, client *http.Client) *urlSource {
	return &urlSource{raw: strings.TrimSpace(raw), client: client}
}

func (s *urlSource) Validate(ctx context.Context) error {
	if s.raw == "" {
		return apperr.InvalidInput("file url is required")
	}
	u, err := url.Parse(s.raw)
	if err != nil || u.Host == "" {
		return apperr.InvalidInput("malformed file url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.InvalidInput("only http and https file urls are supported")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.raw, nil)
	if err != nil {
		return apperr.InvalidInput("malformed file url")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.InvalidInput("file url is not reachable")
	}
	defer resp.Body.Close()

	// Servers that refuse HEAD are checked again while downloading.
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	if ct := normalizeContentType(resp.Header.Get("Content-Type")); ct != "" && !allowedContentTypes[ct] {
		return apperr.InvalidInput("unsupported file type")
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		size, err := strconv.ParseInt(cl, 10, 64)
		if err != nil {
			return apperr.InvalidInput("invalid file size")
		}
		if size > MaxFileSize {
			return apperr.InvalidInput("file size must not exceed 2 MB")
		}
	}
	return nil
}

func (s *urlSource) OriginalFilename() string {
	u, err := url.Parse(s.raw)
	if err != nil {
		return s.raw
	}
	return path.Base(u.Path)
}

func (s *urlSource) Materialize(ctx context.Context, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.raw, nil)
	if err != nil {
		return 0, apperr.InvalidInput("malformed file url")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, apperr.Upstream(err, "failed to download %s", s.raw)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, apperr.Upstream(nil, "failed to download %s: status %d", s.raw, resp.StatusCode)
	}
	if ct := normalizeContentType(resp.Header.Get("Content-Type")); ct != "" && strings.HasPrefix(ct, "image/") && !allowedContentTypes[ct] {
		return 0, apperr.InvalidInput("unsupported file type")
	}
	if resp.ContentLength > MaxFileSize {
		return 0, apperr.InvalidInput("file size must not exceed 2 MB")
	}

	n, err := copyLimited(w, resp.Body)
	if err != nil {
		if apperr.IsKind(err, apperr.KindInvalidInput) {
			return n, err
		}
		return n, apperr.Upstream(err, "failed to download %s", s.raw)
	}
	return n, nil
}

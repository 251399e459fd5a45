package upload

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"picturehub/internal/apperr"
	"picturehub/internal/preview"
	"picturehub/internal/storage"
)

const cleanupTimeout = 10 * time.Second

// Transformer derives renditions from the original bytes.
type Transformer interface {
	Inspect(data []byte) (preview.Info, error)
	Thumbnail(data []byte) ([]byte, error)
	Preview(data []byte) ([]byte, error)
}

// Result describes the stored original and its renditions.
type Result struct {
	Name         string
	URL          string
	ThumbnailURL string
	PreviewURL   string
	Size         int64
	Width        int
	Height       int
	Scale        float64
	Format       string
	// Keys lists original, thumbnail and preview object keys in that order.
	Keys []string
}

type Pipeline struct {
	log         *zap.Logger
	store       storage.Storage
	transformer Transformer
	tmpDir      string
	now         func() time.Time
}

func NewPipeline(log *zap.Logger, store storage.Storage, transformer Transformer, tmpDir string) *Pipeline {
	return &Pipeline{
		log:         log,
		store:       store,
		transformer: transformer,
		tmpDir:      tmpDir,
		now:         time.Now,
	}
}

type rendition struct {
	key         string
	path        string
	contentType string
	info        *storage.ObjectInfo
}

// Ingest validates src, derives the renditions and stores all three objects
// under prefix. Temporary files are removed on every return path, even when
// ctx is cancelled. Nothing is written to the metadata store here.
func (p *Pipeline) Ingest(ctx context.Context, src SourceAdapter, prefix string) (*Result, error) {
	if err := src.Validate(ctx); err != nil {
		return nil, err
	}

	filename := src.OriginalFilename()
	ext := extension(filename)

	var temps []string
	defer func() {
		for _, name := range temps {
			if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
				p.log.Warn("failed to remove temp file", zap.String("path", name), zap.Error(err))
			}
		}
	}()
	createTemp := func(pattern string) (*os.File, error) {
		f, err := os.CreateTemp(p.tmpDir, pattern)
		if err != nil {
			return nil, apperr.Internal(err, "failed to create temp file")
		}
		temps = append(temps, f.Name())
		return f, nil
	}

	original, err := createTemp("original-*")
	if err != nil {
		return nil, err
	}
	size, err := src.Materialize(ctx, original)
	if cerr := original.Close(); err == nil && cerr != nil {
		err = apperr.Internal(cerr, "failed to write temp file")
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(original.Name())
	if err != nil {
		return nil, apperr.Internal(err, "failed to read temp file")
	}

	info, err := p.transformer.Inspect(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, err, "file is not a supported image")
	}
	format := strings.ToLower(info.Format)
	if !allowedExtensions[format] {
		return nil, apperr.InvalidInput("unsupported image format %s", info.Format)
	}
	if canonicalFormat(ext) != canonicalFormat(format) {
		ext = format
	}

	thumbnail, err := p.transformer.Thumbnail(data)
	if err != nil {
		return nil, apperr.Internal(err, "failed to create thumbnail")
	}
	previewData, err := p.transformer.Preview(data)
	if err != nil {
		return nil, apperr.Internal(err, "failed to create preview")
	}

	thumbFile, err := p.writeTemp(createTemp, "thumbnail-*", thumbnail)
	if err != nil {
		return nil, err
	}
	previewFile, err := p.writeTemp(createTemp, "preview-*", previewData)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("%s/%s_%s", strings.Trim(prefix, "/"), p.now().Format("2006-01-02"), randomID())
	renditions := []*rendition{
		{key: base + "." + ext, path: original.Name(), contentType: contentType(ext)},
		{key: base + "_thumbnail." + ext, path: thumbFile, contentType: contentType(ext)},
		{key: base + "_preview.webp", path: previewFile, contentType: "image/webp"},
	}

	if err := p.storeAll(ctx, renditions); err != nil {
		return nil, err
	}

	return &Result{
		Name:         baseName(filename),
		URL:          renditions[0].info.URL,
		ThumbnailURL: renditions[1].info.URL,
		PreviewURL:   renditions[2].info.URL,
		Size:         size,
		Width:        info.Width,
		Height:       info.Height,
		Scale:        Scale(info.Width, info.Height),
		Format:       format,
		Keys:         []string{renditions[0].key, renditions[1].key, renditions[2].key},
	}, nil
}

func (p *Pipeline) writeTemp(createTemp func(string) (*os.File, error), pattern string, data []byte) (string, error) {
	f, err := createTemp(pattern)
	if err != nil {
		return "", err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", apperr.Internal(err, "failed to write temp file")
	}
	return f.Name(), nil
}

// storeAll uploads the renditions concurrently. When any upload fails the
// ones that succeeded are deleted again.
func (p *Pipeline) storeAll(ctx context.Context, renditions []*rendition) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range renditions {
		g.Go(func() error {
			f, err := os.Open(r.path)
			if err != nil {
				return err
			}
			defer f.Close()

			stat, err := f.Stat()
			if err != nil {
				return err
			}

			r.info, err = p.store.PutObject(gctx, r.key, f, stat.Size(), r.contentType)
			return err
		})
	}

	err := g.Wait()
	if err == nil {
		return nil
	}

	var stored []string
	for _, r := range renditions {
		if r.info != nil {
			stored = append(stored, r.key)
		}
	}
	p.DeleteObjects(stored...)
	return apperr.Upstream(err, "failed to store renditions")
}

// DeleteObjects removes keys on a best-effort basis, detached from any
// request context. Failures are logged only.
func (p *Pipeline) DeleteObjects(keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := p.store.DeleteObject(ctx, key); err != nil {
			p.log.Error("failed to delete object", zap.String("key", key), zap.Error(err))
		}
	}
}

// Scale is width/height rounded to two decimals.
func Scale(width, height int) float64 {
	if height == 0 {
		return 0
	}
	return math.Round(float64(width)/float64(height)*100) / 100
}

// canonicalFormat folds the jpg/jpeg spellings together.
func canonicalFormat(ext string) string {
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

func contentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

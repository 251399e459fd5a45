package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturehub/internal/storage"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir, "http://localhost:8080/objects/")
	require.NoError(t, err)

	info, err := s.PutObject(ctx, "public/u-1/a.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/objects/public/u-1/a.png", info.URL)
	assert.Equal(t, int64(9), info.Size)

	rc, err := s.GetObject(ctx, "public/u-1/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.DeleteObject(ctx, "public/u-1/a.png"))
	require.NoError(t, s.DeleteObject(ctx, "public/u-1/a.png"))

	_, err = os.Stat(filepath.Join(dir, "public", "u-1"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.GetObject(ctx, "public/u-1/a.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png")
	require.Error(t, err)
	assert.True(t, Error.Has(err))
}

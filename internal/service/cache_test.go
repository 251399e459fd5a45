package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"picturehub/internal/cache"
	"picturehub/internal/domain"
	"picturehub/internal/repository/memstore"
)

func TestPublicListIsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zaptest.NewLogger(t)
	store := memstore.New()
	ledger := NewQuotaLedger(log)
	perms := NewPermissionService()
	readCache := cache.New(log, client, "test", time.Minute, time.Second)
	pictures := NewPictureService(log, store, &fakeIngester{}, ledger, perms, readCache, nil)
	ctx := context.Background()

	page, err := pictures.List(ctx, nil, domain.PictureQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// A write that bypasses the service is not visible until the cache is refreshed.
	require.NoError(t, store.Pictures().Create(ctx, &domain.Picture{UserID: "x", Name: "direct", ReviewStatus: domain.ReviewPass}))
	page, err = pictures.List(ctx, nil, domain.PictureQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	assert.ErrorContains(t, pictures.RefreshListCache(ctx, alice), "admin")
	require.NoError(t, pictures.RefreshListCache(ctx, admin))
	page, err = pictures.List(ctx, nil, domain.PictureQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	// Admin uploads land in the public library approved and drop the cached pages.
	_, err = pictures.Upload(ctx, admin, image(10), domain.UploadRequest{})
	require.NoError(t, err)
	page, err = pictures.List(ctx, nil, domain.PictureQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "original", page.Records[0].Name)
}

func TestSpaceListBypassesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zaptest.NewLogger(t)
	store := memstore.New()
	readCache := cache.New(log, client, "test", time.Minute, time.Second)
	pictures := NewPictureService(log, store, &fakeIngester{}, NewQuotaLedger(log), NewPermissionService(), readCache, nil)
	ctx := context.Background()

	space := &domain.Space{UserID: alice.ID, SpaceName: "private"}
	require.NoError(t, store.Spaces().Create(ctx, space))
	q := domain.PictureQuery{SpaceID: &space.ID}

	page, err := pictures.List(ctx, alice, q)
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	require.NoError(t, store.Pictures().Create(ctx, &domain.Picture{UserID: alice.ID, Name: "private", SpaceID: &space.ID}))
	page, err = pictures.List(ctx, alice, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Empty(t, mr.Keys(), "space listings must not be written to the cache")
}

package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturehub/internal/apperr"
	"picturehub/internal/domain"
)

func TestProvisionDefaults(t *testing.T) {
	f := newFixture(t)

	space, err := f.spaces.Provision(context.Background(), alice, domain.SpaceAddRequest{})
	require.NoError(t, err)
	assert.Equal(t, defaultSpaceName, space.SpaceName)
	assert.Equal(t, domain.SpaceLevelCommon, space.SpaceLevel)

	info, _ := domain.SpaceLevelCommon.Info()
	assert.Equal(t, info.MaxSize, space.MaxSize)
	assert.Equal(t, info.MaxCount, space.MaxCount)
	assert.Zero(t, space.TotalSize)
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := domain.SpaceLevelProfessional
	bogus := domain.SpaceLevel(9)

	tests := []struct {
		name string
		user *domain.User
		req  domain.SpaceAddRequest
		kind apperr.Kind
	}{
		{"anonymous", nil, domain.SpaceAddRequest{}, apperr.KindForbidden},
		{"name too long", alice, domain.SpaceAddRequest{SpaceName: strings.Repeat("x", 26)}, apperr.KindInvalidInput},
		{"unknown level", alice, domain.SpaceAddRequest{SpaceLevel: &bogus}, apperr.KindInvalidInput},
		{"elevated tier", alice, domain.SpaceAddRequest{SpaceLevel: &pro}, apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.spaces.Provision(ctx, tt.user, tt.req)
			assertKind(t, err, tt.kind)
		})
	}

	space, err := f.spaces.Provision(ctx, admin, domain.SpaceAddRequest{SpaceName: "archive", SpaceLevel: &pro})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), space.MaxCount)
}

func TestProvisionSameUserConcurrently(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.spaces.Provision(context.Background(), alice, domain.SpaceAddRequest{SpaceName: "mine"})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var ok, conflict int
	for err := range errCh {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
}

func TestProvisionDifferentUsersConcurrently(t *testing.T) {
	f := newFixture(t)
	users := []*domain.User{alice, bob, admin}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u *domain.User) {
			defer wg.Done()
			_, errs[i] = f.spaces.Provision(context.Background(), u, domain.SpaceAddRequest{})
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	page, err := f.spaces.List(context.Background(), admin, domain.SpaceQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestSpaceEdit(t *testing.T) {
	f := newFixture(t)
	space := f.provision(t, alice)
	ctx := context.Background()

	_, err := f.spaces.Edit(ctx, bob, domain.SpaceEditRequest{ID: space.ID, SpaceName: "mine now"})
	assertKind(t, err, apperr.KindForbidden)

	_, err = f.spaces.Edit(ctx, alice, domain.SpaceEditRequest{ID: space.ID, SpaceName: " "})
	assertKind(t, err, apperr.KindInvalidInput)

	edited, err := f.spaces.Edit(ctx, admin, domain.SpaceEditRequest{ID: space.ID, SpaceName: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", edited.SpaceName)
	assert.NotNil(t, edited.EditTime)
}

func TestUpdateByAdmin(t *testing.T) {
	f := newFixture(t)
	space := f.provision(t, alice)
	ctx := context.Background()

	_, err := f.pictures.Upload(ctx, alice, image(1000), domain.UploadRequest{SpaceID: &space.ID})
	require.NoError(t, err)

	flagship := domain.SpaceLevelFlagship
	_, err = f.spaces.UpdateByAdmin(ctx, alice, domain.SpaceUpdateRequest{ID: space.ID, SpaceLevel: &flagship})
	assertKind(t, err, apperr.KindForbidden)

	updated, err := f.spaces.UpdateByAdmin(ctx, admin, domain.SpaceUpdateRequest{ID: space.ID, SpaceLevel: &flagship})
	require.NoError(t, err)
	info, _ := flagship.Info()
	assert.Equal(t, info.MaxSize, updated.MaxSize)
	assert.Equal(t, info.MaxCount, updated.MaxCount)
	assert.Equal(t, int64(1000), updated.TotalSize)

	tooSmall := int64(999)
	_, err = f.spaces.UpdateByAdmin(ctx, admin, domain.SpaceUpdateRequest{ID: space.ID, MaxSize: &tooSmall})
	assertKind(t, err, apperr.KindInvalidInput)
	assert.Equal(t, info.MaxSize, f.space(t, space.ID).MaxSize)

	_, err = f.spaces.UpdateByAdmin(ctx, admin, domain.SpaceUpdateRequest{ID: space.ID + 100})
	assertKind(t, err, apperr.KindNotFound)
}

func TestSpaceDeleteRemovesPictures(t *testing.T) {
	f := newFixture(t)
	space := f.provision(t, alice)
	ctx := context.Background()

	pic, err := f.pictures.Upload(ctx, alice, image(10), domain.UploadRequest{SpaceID: &space.ID})
	require.NoError(t, err)

	assertKind(t, f.spaces.Delete(ctx, bob, space.ID), apperr.KindForbidden)
	require.NoError(t, f.spaces.Delete(ctx, alice, space.ID))

	_, err = f.pictures.Get(ctx, alice, pic.ID)
	assertKind(t, err, apperr.KindNotFound)

	_, err = f.spaces.GetMine(ctx, alice)
	assertKind(t, err, apperr.KindNotFound)

	// The user may provision again once the old space is gone.
	f.provision(t, alice)
}

func TestQuotaInfo(t *testing.T) {
	f := newFixture(t)
	space := f.provision(t, alice)
	f.limit(t, space.ID, 4000, 4)
	ctx := context.Background()

	_, err := f.pictures.Upload(ctx, alice, image(1000), domain.UploadRequest{SpaceID: &space.ID})
	require.NoError(t, err)

	info, err := f.spaces.QuotaInfo(ctx, alice, space.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), info.TotalSpace)
	assert.Equal(t, int64(1000), info.UsedSpace)
	assert.Equal(t, int64(3000), info.AvailableSpace)
	assert.InDelta(t, 25.0, info.UsagePercent, 0.001)
	assert.InDelta(t, 25.0, info.CountUsagePercent, 0.001)

	_, err = f.spaces.QuotaInfo(ctx, bob, space.ID)
	assertKind(t, err, apperr.KindForbidden)
}

func TestSpaceListScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.provision(t, alice)
	f.provision(t, bob)
	ctx := context.Background()

	page, err := f.spaces.List(ctx, alice, domain.SpaceQuery{UserID: bob.ID})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, alice.ID, page.Records[0].UserID)

	page, err = f.spaces.List(ctx, admin, domain.SpaceQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)

	_, err = f.spaces.List(ctx, admin, domain.SpaceQuery{PageSize: 50})
	assertKind(t, err, apperr.KindInvalidInput)

	assert.Len(t, f.spaces.ListLevels(), 3)
}

func TestPermissionMatrix(t *testing.T) {
	perms := NewPermissionService()
	spaceID := int64(1)
	space := &domain.Space{ID: spaceID, UserID: alice.ID}
	publicPending := &domain.Picture{ID: 1, UserID: alice.ID, ReviewStatus: domain.ReviewPending}
	publicPass := &domain.Picture{ID: 2, UserID: alice.ID, ReviewStatus: domain.ReviewPass}
	spaced := &domain.Picture{ID: 3, UserID: alice.ID, SpaceID: &spaceID, ReviewStatus: domain.ReviewPass}

	tests := []struct {
		name  string
		user  *domain.User
		pic   *domain.Picture
		space *domain.Space
		op    OperationType
		want  bool
	}{
		{"anyone views approved public", nil, publicPass, nil, OperationView, true},
		{"stranger cannot view pending", bob, publicPending, nil, OperationView, false},
		{"owner views pending", alice, publicPending, nil, OperationView, true},
		{"admin edits public", admin, publicPending, nil, OperationEdit, true},
		{"stranger cannot delete public", bob, publicPass, nil, OperationDelete, false},
		{"space owner edits", alice, spaced, space, OperationEdit, true},
		{"admin cannot see private space", admin, spaced, space, OperationView, false},
		{"anonymous cannot see private space", nil, spaced, space, OperationView, false},
		{"owner cannot review", alice, publicPending, nil, OperationReview, false},
		{"admin reviews", admin, publicPending, nil, OperationReview, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, perms.CanAccessPicture(tt.user, tt.pic, tt.space, tt.op))
		})
	}

	assert.True(t, perms.CanAccessSpace(alice, space, OperationUpload))
	assert.False(t, perms.CanAccessSpace(admin, space, OperationUpload))
	assert.True(t, perms.CanAccessSpace(admin, space, OperationDelete))
	assert.False(t, perms.CanAccessSpace(bob, space, OperationView))

	assert.True(t, perms.CanMutatePicture(alice, spaced, space))
	assert.False(t, perms.CanMutatePicture(admin, spaced, space))
	assert.True(t, perms.CanMutatePicture(admin, publicPass, nil))
	assert.True(t, perms.CanMutateSpace(admin, space))
	assert.False(t, perms.CanMutateSpace(bob, space))
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"picturehub/internal/apperr"
	"picturehub/internal/cache"
	"picturehub/internal/domain"
	"picturehub/internal/repository"
	"picturehub/internal/upload"
)

const (
	PictureListNamespace = "picture:list"

	maxListPageSize     = 20
	maxBatchCount       = 30
	defaultBatchCount   = 10
	maxIntroductionLen  = 800
	maxPictureNameLen   = 128
	autoApprovedMessage = "auto approved by admin"
)

// Ingester stores an original and its renditions.
type Ingester interface {
	Ingest(ctx context.Context, src upload.SourceAdapter, prefix string) (*upload.Result, error)
	DeleteObjects(keys ...string)
}

// Searcher finds remote image URLs for batch ingestion.
type Searcher interface {
	Search(ctx context.Context, text string) ([]string, error)
}

type PictureService struct {
	log      *zap.Logger
	store    repository.Store
	ingester Ingester
	ledger   *QuotaLedger
	perms    *PermissionService
	cache    *cache.ReadCache
	searcher Searcher
	now      func() time.Time
}

// NewPictureService wires the picture operations. readCache and searcher may
// be nil, which disables list caching and batch ingestion respectively.
func NewPictureService(
	log *zap.Logger,
	store repository.Store,
	ingester Ingester,
	ledger *QuotaLedger,
	perms *PermissionService,
	readCache *cache.ReadCache,
	searcher Searcher,
) *PictureService {
	return &PictureService{
		log:      log,
		store:    store,
		ingester: ingester,
		ledger:   ledger,
		perms:    perms,
		cache:    readCache,
		searcher: searcher,
		now:      time.Now,
	}
}

// Upload ingests input (an *upload.FileInput or a URL string) and commits
// the picture together with its quota delta. With req.ID set the existing
// picture is replaced in place.
func (s *PictureService) Upload(ctx context.Context, user *domain.User, input any, req domain.UploadRequest) (*domain.Picture, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	spaceID := req.SpaceID

	var old *domain.Picture
	if req.ID != nil {
		var err error
		old, err = s.store.Pictures().GetByID(ctx, *req.ID)
		if err != nil {
			return nil, storeError(err, "picture")
		}
		if spaceID == nil {
			spaceID = old.SpaceID
		} else if old.SpaceID == nil || *old.SpaceID != *spaceID {
			return nil, apperr.Forbidden("picture belongs to a different space")
		}
	}

	var space *domain.Space
	if spaceID != nil {
		var err error
		space, err = s.store.Spaces().GetByID(ctx, *spaceID)
		if err != nil {
			return nil, storeError(err, "space")
		}
		if err := s.perms.CheckSpace(user, space, OperationUpload); err != nil {
			return nil, err
		}
		if old == nil && space.TotalCount >= space.MaxCount {
			return nil, apperr.Forbidden("space picture count quota exceeded")
		}
		if space.TotalSize >= space.MaxSize {
			return nil, apperr.Forbidden("space storage quota exceeded")
		}
	}
	if old != nil {
		if err := s.perms.CheckPicture(user, old, space, OperationEdit); err != nil {
			return nil, err
		}
	}

	prefix := fmt.Sprintf("public/%s", user.ID)
	if spaceID != nil {
		prefix = fmt.Sprintf("space/%d", *spaceID)
	}

	src, err := upload.NewSourceAdapter(input)
	if err != nil {
		return nil, err
	}
	res, err := s.ingester.Ingest(ctx, src, prefix)
	if err != nil {
		return nil, s.logFailure(err, "ingestion failed", zap.String("user", user.ID))
	}

	pic := &domain.Picture{
		UserID:  user.ID,
		SpaceID: spaceID,
		Tags:    domain.Tags{},
	}
	if old != nil {
		*pic = *old
		now := s.now()
		pic.EditTime = &now
	}
	pic.URL = res.URL
	pic.ThumbnailURL = res.ThumbnailURL
	pic.PreviewURL = res.PreviewURL
	pic.PicSize = res.Size
	pic.PicWidth = res.Width
	pic.PicHeight = res.Height
	pic.PicScale = res.Scale
	pic.PicFormat = res.Format
	pic.Name = res.Name
	if name := strings.TrimSpace(req.PicName); name != "" {
		pic.Name = name
	}
	s.fillReview(pic, user)

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if old != nil {
			if err := tx.Pictures().Update(ctx, pic); err != nil {
				return err
			}
			if spaceID != nil {
				return s.ledger.Adjust(ctx, tx, *spaceID, res.Size-old.PicSize, 0)
			}
			return nil
		}

		if err := tx.Pictures().Create(ctx, pic); err != nil {
			return err
		}
		if spaceID != nil {
			return s.ledger.Reserve(ctx, tx, *spaceID, res.Size, 1)
		}
		return nil
	})
	if err != nil {
		s.ingester.DeleteObjects(res.Keys...)
		return nil, s.logFailure(storeError(err, "picture"), "failed to commit picture", zap.String("user", user.ID))
	}

	s.log.Info("picture uploaded",
		zap.Int64("id", pic.ID),
		zap.String("user", user.ID),
		zap.Int64("size", pic.PicSize),
		zap.Bool("reupload", old != nil))

	if pic.IsPublic() {
		s.invalidateList(ctx)
	}
	return pic, nil
}

// UploadByBatch ingests up to req.Count images found for req.SearchText.
// Per-item failures are skipped; the number of stored pictures is returned.
func (s *PictureService) UploadByBatch(ctx context.Context, user *domain.User, req domain.BatchUploadRequest) (int, error) {
	if err := s.perms.RequireAdmin(user); err != nil {
		return 0, err
	}
	if s.searcher == nil {
		return 0, apperr.New(apperr.KindInternal, "batch ingestion is not configured")
	}

	text := strings.TrimSpace(req.SearchText)
	if text == "" {
		return 0, apperr.InvalidInput("search text is required")
	}
	count := req.Count
	if count <= 0 {
		count = defaultBatchCount
	}
	if count > maxBatchCount {
		return 0, apperr.InvalidInput("at most %d pictures per batch", maxBatchCount)
	}
	prefix := strings.TrimSpace(req.NamePrefix)
	if prefix == "" {
		prefix = text
	}

	urls, err := s.searcher.Search(ctx, text)
	if err != nil {
		return 0, s.logFailure(apperr.Upstream(err, "image search failed"), "search failed", zap.String("text", text))
	}

	uploaded := 0
	for _, u := range urls {
		if uploaded >= count {
			break
		}
		if ctx.Err() != nil {
			break
		}
		pic, err := s.Upload(ctx, user, u, domain.UploadRequest{PicName: fmt.Sprintf("%s%d", prefix, uploaded+1)})
		if err != nil {
			s.log.Warn("batch item skipped", zap.String("url", u), zap.Error(err))
			continue
		}
		uploaded++
		s.log.Debug("batch item stored", zap.Int64("id", pic.ID))
	}

	s.log.Info("batch upload finished",
		zap.String("text", text), zap.Int("requested", count), zap.Int("uploaded", uploaded))
	return uploaded, nil
}

func (s *PictureService) Get(ctx context.Context, user *domain.User, id int64) (*domain.Picture, error) {
	pic, err := s.store.Pictures().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "picture")
	}
	space, err := s.spaceOf(ctx, pic)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CheckPicture(user, pic, space, OperationView); err != nil {
		return nil, err
	}
	return pic, nil
}

// Edit changes the descriptive fields. Non-admin edits send the picture
// back to review.
func (s *PictureService) Edit(ctx context.Context, user *domain.User, req domain.PictureEditRequest) (*domain.Picture, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, apperr.InvalidInput("picture id is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidInput("picture name is required")
	}
	if len(name) > maxPictureNameLen {
		return nil, apperr.InvalidInput("picture name is too long")
	}
	if len(req.Introduction) > maxIntroductionLen {
		return nil, apperr.InvalidInput("introduction is too long")
	}

	pic, err := s.store.Pictures().GetByID(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "picture")
	}
	space, err := s.spaceOf(ctx, pic)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CheckPicture(user, pic, space, OperationEdit); err != nil {
		return nil, err
	}

	now := s.now()
	pic.Name = name
	pic.Introduction = req.Introduction
	pic.Category = strings.TrimSpace(req.Category)
	pic.Tags = domain.Tags(req.Tags).Normalize()
	pic.EditTime = &now
	s.fillReview(pic, user)

	if err := s.store.Pictures().Update(ctx, pic); err != nil {
		return nil, s.logFailure(storeError(err, "picture"), "failed to edit picture")
	}
	if pic.IsPublic() {
		s.invalidateList(ctx)
	}
	return pic, nil
}

// Review sets the review outcome. Only admins may review and a picture
// cannot be set to the status it already has.
func (s *PictureService) Review(ctx context.Context, user *domain.User, req domain.PictureReviewRequest) error {
	if err := s.perms.RequireAdmin(user); err != nil {
		return err
	}
	if req.ID <= 0 || !req.ReviewStatus.Valid() || req.ReviewStatus == domain.ReviewPending {
		return apperr.InvalidInput("invalid review request")
	}

	pic, err := s.store.Pictures().GetByID(ctx, req.ID)
	if err != nil {
		return storeError(err, "picture")
	}
	if pic.ReviewStatus == req.ReviewStatus {
		return apperr.Conflict("picture is already %s", req.ReviewStatus)
	}

	now := s.now()
	reviewer := user.ID
	pic.ReviewStatus = req.ReviewStatus
	pic.ReviewMessage = req.ReviewMessage
	pic.ReviewerID = &reviewer
	pic.ReviewTime = &now

	if err := s.store.Pictures().Update(ctx, pic); err != nil {
		return s.logFailure(storeError(err, "picture"), "failed to review picture")
	}
	if pic.IsPublic() {
		s.invalidateList(ctx)
	}
	return nil
}

// Delete removes the picture row and releases its quota in one transaction.
// Stored objects are left in place.
func (s *PictureService) Delete(ctx context.Context, user *domain.User, id int64) error {
	if err := requireUser(user); err != nil {
		return err
	}

	pic, err := s.store.Pictures().GetByID(ctx, id)
	if err != nil {
		return storeError(err, "picture")
	}
	space, err := s.spaceOf(ctx, pic)
	if err != nil {
		return err
	}
	if !s.perms.CanMutatePicture(user, pic, space) {
		return apperr.Forbidden("no permission to delete picture %d", pic.ID)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Pictures().Delete(ctx, pic.ID); err != nil {
			return err
		}
		if pic.SpaceID != nil {
			return s.ledger.Release(ctx, tx, *pic.SpaceID, pic.PicSize, 1)
		}
		return nil
	})
	if err != nil {
		return s.logFailure(storeError(err, "picture"), "failed to delete picture", zap.Int64("id", id))
	}

	s.log.Info("picture deleted", zap.Int64("id", id), zap.String("user", user.ID))
	if pic.IsPublic() {
		s.invalidateList(ctx)
	}
	return nil
}

// List pages through pictures. Without a space the public library is
// listed and only approved pictures are returned; a space listing is
// reserved to the space owner.
func (s *PictureService) List(ctx context.Context, user *domain.User, q domain.PictureQuery) (*domain.Page[domain.Picture], error) {
	q.Normalize()
	if q.PageSize > maxListPageSize {
		return nil, apperr.InvalidInput("page size must not exceed %d", maxListPageSize)
	}

	if q.SpaceID == nil {
		pass := domain.ReviewPass
		q.ReviewStatus = &pass
		q.NullSpaceID = true
	} else {
		space, err := s.store.Spaces().GetByID(ctx, *q.SpaceID)
		if err != nil {
			return nil, storeError(err, "space")
		}
		if user == nil || user.ID != space.UserID {
			return nil, apperr.Forbidden("no permission to view space %d", space.ID)
		}
	}

	load := func(ctx context.Context) (*domain.Page[domain.Picture], error) {
		records, total, err := s.store.Pictures().List(ctx, q)
		if err != nil {
			return nil, err
		}
		return &domain.Page[domain.Picture]{
			Current:  q.Current,
			PageSize: q.PageSize,
			Total:    total,
			Records:  records,
		}, nil
	}

	var (
		page *domain.Page[domain.Picture]
		err  error
	)
	// Space listings change with every private write and are never cached.
	if s.cache != nil && q.SpaceID == nil {
		page, err = cache.GetOrLoad(ctx, s.cache, PictureListNamespace, q, load)
	} else {
		page, err = load(ctx)
	}
	if err != nil {
		return nil, s.logFailure(storeError(err, "picture"), "failed to list pictures")
	}
	return page, nil
}

// RefreshListCache drops every cached picture listing.
func (s *PictureService) RefreshListCache(ctx context.Context, user *domain.User) error {
	if err := s.perms.RequireAdmin(user); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, PictureListNamespace); err != nil {
		return s.logFailure(err, "failed to refresh picture list cache")
	}
	return nil
}

func (s *PictureService) spaceOf(ctx context.Context, pic *domain.Picture) (*domain.Space, error) {
	if pic.SpaceID == nil {
		return nil, nil
	}
	space, err := s.store.Spaces().GetByID(ctx, *pic.SpaceID)
	if err != nil {
		return nil, storeError(err, "space")
	}
	return space, nil
}

// fillReview approves pictures touched by admins and resets everybody
// else's to pending.
func (s *PictureService) fillReview(pic *domain.Picture, user *domain.User) {
	if user.IsAdmin() {
		now := s.now()
		reviewer := user.ID
		pic.ReviewStatus = domain.ReviewPass
		pic.ReviewMessage = autoApprovedMessage
		pic.ReviewerID = &reviewer
		pic.ReviewTime = &now
		return
	}
	pic.ReviewStatus = domain.ReviewPending
	pic.ReviewMessage = ""
	pic.ReviewerID = nil
	pic.ReviewTime = nil
}

func (s *PictureService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, PictureListNamespace); err != nil {
		s.log.Warn("failed to invalidate picture list cache", zap.Error(err))
	}
}

// logFailure logs upstream and unexpected failures. Classified client
// errors are returned without logging.
func (s *PictureService) logFailure(err error, msg string, fields ...zap.Field) error {
	switch apperr.KindOf(err) {
	case apperr.KindUpstream, apperr.KindInternal:
		s.log.Error(msg, append(fields, zap.Error(err))...)
	}
	return err
}

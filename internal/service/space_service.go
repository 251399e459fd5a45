package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"picturehub/internal/apperr"
	"picturehub/internal/domain"
	"picturehub/internal/lock"
	"picturehub/internal/repository"
)

const defaultSpaceName = "default space"

type SpaceService struct {
	log    *zap.Logger
	store  repository.Store
	locker lock.Locker
	ledger *QuotaLedger
	perms  *PermissionService
	now    func() time.Time
}

func NewSpaceService(
	log *zap.Logger,
	store repository.Store,
	locker lock.Locker,
	ledger *QuotaLedger,
	perms *PermissionService,
) *SpaceService {
	return &SpaceService{
		log:    log,
		store:  store,
		locker: locker,
		ledger: ledger,
		perms:  perms,
		now:    time.Now,
	}
}

// Provision creates the caller's space. Each user owns at most one space;
// concurrent calls for the same user are serialized by a per-user lock and
// the loser gets Conflict.
func (s *SpaceService) Provision(ctx context.Context, user *domain.User, req domain.SpaceAddRequest) (*domain.Space, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.SpaceName)
	if name == "" {
		name = defaultSpaceName
	}
	level := domain.SpaceLevelCommon
	if req.SpaceLevel != nil {
		level = *req.SpaceLevel
	}
	if err := validateSpaceName(name); err != nil {
		return nil, err
	}
	info, ok := level.Info()
	if !ok {
		return nil, apperr.InvalidInput("unknown space level %d", level)
	}
	if level != domain.SpaceLevelCommon && !user.IsAdmin() {
		return nil, apperr.Forbidden("no permission to create a %s space", info.Text)
	}

	unlock, err := s.locker.Lock(ctx, "space:"+user.ID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.log.Error("failed to acquire provisioning lock", zap.String("user", user.ID), zap.Error(err))
		return nil, apperr.Upstream(err, "failed to acquire provisioning lock")
	}
	defer unlock()

	space := &domain.Space{
		UserID:     user.ID,
		SpaceName:  name,
		SpaceLevel: level,
	}
	fillLimits(space, info)

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := tx.Spaces().GetByUserID(ctx, user.ID)
		switch {
		case err == nil:
			return apperr.Conflict("user already owns a space")
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		return tx.Spaces().Create(ctx, space)
	})
	if err != nil {
		err = storeError(err, "space")
		if apperr.IsKind(err, apperr.KindInternal) {
			s.log.Error("failed to provision space", zap.String("user", user.ID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("space provisioned",
		zap.Int64("id", space.ID),
		zap.String("user", user.ID),
		zap.String("level", info.Text))
	return space, nil
}

func (s *SpaceService) Get(ctx context.Context, user *domain.User, id int64) (*domain.Space, error) {
	space, err := s.store.Spaces().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "space")
	}
	if err := s.perms.CheckSpace(user, space, OperationView); err != nil {
		return nil, err
	}
	return space, nil
}

// GetMine returns the caller's own space.
func (s *SpaceService) GetMine(ctx context.Context, user *domain.User) (*domain.Space, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	space, err := s.store.Spaces().GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "space")
	}
	return space, nil
}

// Edit renames a space.
func (s *SpaceService) Edit(ctx context.Context, user *domain.User, req domain.SpaceEditRequest) (*domain.Space, error) {
	name := strings.TrimSpace(req.SpaceName)
	if err := validateSpaceName(name); err != nil {
		return nil, err
	}

	space, err := s.store.Spaces().GetByID(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "space")
	}
	if err := s.perms.CheckSpace(user, space, OperationEdit); err != nil {
		return nil, err
	}

	now := s.now()
	space.SpaceName = name
	space.EditTime = &now
	if err := s.store.Spaces().Update(ctx, space); err != nil {
		return nil, storeError(err, "space")
	}
	return space, nil
}

// UpdateByAdmin changes name, tier and ceilings. Ceilings left unset are
// taken from the tier. A ceiling below current usage is refused.
func (s *SpaceService) UpdateByAdmin(ctx context.Context, user *domain.User, req domain.SpaceUpdateRequest) (*domain.Space, error) {
	if err := s.perms.RequireAdmin(user); err != nil {
		return nil, err
	}

	var updated *domain.Space
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		space, err := tx.Spaces().GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		if name := strings.TrimSpace(req.SpaceName); name != "" {
			if err := validateSpaceName(name); err != nil {
				return err
			}
			space.SpaceName = name
		}

		if req.SpaceLevel != nil {
			space.SpaceLevel = *req.SpaceLevel
		}
		info, ok := space.SpaceLevel.Info()
		if !ok {
			return apperr.InvalidInput("unknown space level %d", space.SpaceLevel)
		}

		space.MaxSize, space.MaxCount = 0, 0
		if req.MaxSize != nil {
			space.MaxSize = *req.MaxSize
		}
		if req.MaxCount != nil {
			space.MaxCount = *req.MaxCount
		}
		fillLimits(space, info)

		if space.MaxSize < space.TotalSize || space.MaxCount < space.TotalCount {
			return apperr.InvalidInput("space limits are below current usage")
		}

		now := s.now()
		space.EditTime = &now
		if err := tx.Spaces().Update(ctx, space); err != nil {
			return err
		}
		updated = space
		return nil
	})
	if err != nil {
		return nil, storeError(err, "space")
	}

	s.log.Info("space updated by admin",
		zap.Int64("id", updated.ID),
		zap.String("admin", user.ID),
		zap.Int64("max_size", updated.MaxSize),
		zap.Int64("max_count", updated.MaxCount))
	return updated, nil
}

// Delete removes the space together with its picture rows.
func (s *SpaceService) Delete(ctx context.Context, user *domain.User, id int64) error {
	space, err := s.store.Spaces().GetByID(ctx, id)
	if err != nil {
		return storeError(err, "space")
	}
	if !s.perms.CanMutateSpace(user, space) {
		return apperr.Forbidden("no permission to delete space %d", space.ID)
	}

	var removed int64
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		n, err := tx.Pictures().DeleteBySpace(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Spaces().Delete(ctx, id)
	})
	if err != nil {
		err = storeError(err, "space")
		if apperr.IsKind(err, apperr.KindInternal) {
			s.log.Error("failed to delete space", zap.Int64("id", id), zap.Error(err))
		}
		return err
	}

	s.log.Info("space deleted", zap.Int64("id", id), zap.Int64("pictures", removed))
	return nil
}

// QuotaInfo reports usage against the space ceilings.
func (s *SpaceService) QuotaInfo(ctx context.Context, user *domain.User, id int64) (*domain.QuotaInfo, error) {
	space, err := s.store.Spaces().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "space")
	}
	if err := s.perms.CheckSpace(user, space, OperationView); err != nil {
		return nil, err
	}
	return s.ledger.Info(space), nil
}

// List pages through spaces. Non-admins only ever see their own.
func (s *SpaceService) List(ctx context.Context, user *domain.User, q domain.SpaceQuery) (*domain.Page[domain.Space], error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	q.Normalize()
	if q.PageSize > maxListPageSize {
		return nil, apperr.InvalidInput("page size must not exceed %d", maxListPageSize)
	}
	if !user.IsAdmin() {
		q.UserID = user.ID
	}

	records, total, err := s.store.Spaces().List(ctx, q)
	if err != nil {
		return nil, storeError(err, "space")
	}
	return &domain.Page[domain.Space]{
		Current:  q.Current,
		PageSize: q.PageSize,
		Total:    total,
		Records:  records,
	}, nil
}

func (s *SpaceService) ListLevels() []domain.SpaceLevelInfo {
	return domain.SpaceLevels()
}

// fillLimits applies tier ceilings to the ones that are not set explicitly.
func fillLimits(space *domain.Space, info domain.SpaceLevelInfo) {
	if space.MaxSize <= 0 {
		space.MaxSize = info.MaxSize
	}
	if space.MaxCount <= 0 {
		space.MaxCount = info.MaxCount
	}
}

func validateSpaceName(name string) error {
	if name == "" {
		return apperr.InvalidInput("space name is required")
	}
	if utf8.RuneCountInString(name) > domain.MaxSpaceNameLength {
		return apperr.InvalidInput("space name must be at most %d characters", domain.MaxSpaceNameLength)
	}
	return nil
}

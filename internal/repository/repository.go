package repository

import (
	"context"
	"errors"

	"picturehub/internal/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrQuotaExceeded = errors.New("space quota exceeded")
)

type Pictures interface {
	GetByID(ctx context.Context, id int64) (*domain.Picture, error)
	Create(ctx context.Context, pic *domain.Picture) error
	Update(ctx context.Context, pic *domain.Picture) error
	Delete(ctx context.Context, id int64) error
	DeleteBySpace(ctx context.Context, spaceID int64) (int64, error)
	List(ctx context.Context, q domain.PictureQuery) ([]domain.Picture, int64, error)
}

type Spaces interface {
	GetByID(ctx context.Context, id int64) (*domain.Space, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Space, error)
	Create(ctx context.Context, space *domain.Space) error
	Update(ctx context.Context, space *domain.Space) error
	Delete(ctx context.Context, id int64) error
	// ApplyUsageDelta adds the deltas to the space counters in one conditional
	// statement. Positive deltas are refused with ErrQuotaExceeded when they
	// would cross a ceiling; negative deltas floor the counters at zero.
	ApplyUsageDelta(ctx context.Context, id int64, deltaBytes, deltaCount int64) error
	List(ctx context.Context, q domain.SpaceQuery) ([]domain.Space, int64, error)
}

// Store groups the repositories behind one transactional boundary.
type Store interface {
	Pictures() Pictures
	Spaces() Spaces
	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"picturehub/internal/domain"
)

const spaceColumns = `id, user_id, space_name, space_level, max_size, max_count,
	total_size, total_count, edit_time, created_at, updated_at`

var spaceSortColumns = map[string]string{
	"createTime": "created_at",
	"spaceName":  "space_name",
	"spaceLevel": "space_level",
	"totalSize":  "total_size",
	"totalCount": "total_count",
}

type SpaceRepository struct {
	db sqlx.ExtContext
}

func NewSpaceRepository(db sqlx.ExtContext) *SpaceRepository {
	return &SpaceRepository{db: db}
}

func (r *SpaceRepository) GetByID(ctx context.Context, id int64) (*domain.Space, error) {
	var space domain.Space
	err := sqlx.GetContext(ctx, r.db, &space,
		`SELECT `+spaceColumns+` FROM spaces WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get space %d: %w", id, notFound(err))
	}
	return &space, nil
}

func (r *SpaceRepository) GetByUserID(ctx context.Context, userID string) (*domain.Space, error) {
	var space domain.Space
	err := sqlx.GetContext(ctx, r.db, &space,
		`SELECT `+spaceColumns+` FROM spaces WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space of user %s: %w", userID, notFound(err))
	}
	return &space, nil
}

func (r *SpaceRepository) Create(ctx context.Context, space *domain.Space) error {
	query := `
        INSERT INTO spaces (user_id, space_name, space_level, max_size, max_count, total_size, total_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		space.UserID,
		space.SpaceName,
		space.SpaceLevel,
		space.MaxSize,
		space.MaxCount,
		space.TotalSize,
		space.TotalCount,
	).Scan(&space.ID, &space.CreatedAt, &space.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

// Update writes the descriptive fields and ceilings. Usage counters are
// owned by ApplyUsageDelta and never written here.
func (r *SpaceRepository) Update(ctx context.Context, space *domain.Space) error {
	query := `
        UPDATE spaces
        SET space_name = $1,
            space_level = $2,
            max_size = $3,
            max_count = $4,
            edit_time = $5,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		space.SpaceName,
		space.SpaceLevel,
		space.MaxSize,
		space.MaxCount,
		space.EditTime,
		space.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update space: %w", err)
	}
	return checkAffected(result)
}

func (r *SpaceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	return checkAffected(result)
}

func (r *SpaceRepository) ApplyUsageDelta(ctx context.Context, id int64, deltaBytes, deltaCount int64) error {
	query := `
        UPDATE spaces
        SET total_size = GREATEST(0, total_size + $1),
            total_count = GREATEST(0, total_count + $2),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
          AND ($1 <= 0 OR total_size + $1 <= max_size)
          AND ($2 <= 0 OR total_count + $2 <= max_count)`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, deltaCount, id)
	if err != nil {
		return fmt.Errorf("failed to apply usage delta: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = sqlx.GetContext(ctx, r.db, &exists,
		`SELECT EXISTS (SELECT 1 FROM spaces WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("failed to check space existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrQuotaExceeded
}

func (r *SpaceRepository) List(ctx context.Context, q domain.SpaceQuery) ([]domain.Space, int64, error) {
	var f filter
	if q.UserID != "" {
		f.add("user_id = ?", q.UserID)
	}
	if q.SpaceName != "" {
		f.add("space_name ILIKE ?", like(q.SpaceName))
	}
	if q.SpaceLevel != nil {
		f.add("space_level = ?", *q.SpaceLevel)
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM spaces`+f.where(), f.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count spaces: %w", err)
	}

	limit, args := f.page(q.PageSize, q.Offset())
	query := `SELECT ` + spaceColumns + ` FROM spaces` + f.where() +
		orderBy(q.SortField, q.SortOrder, spaceSortColumns, "created_at DESC, id DESC") + limit

	spaces := make([]domain.Space, 0, q.PageSize)
	if err := sqlx.SelectContext(ctx, r.db, &spaces, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list spaces: %w", err)
	}
	return spaces, total, nil
}

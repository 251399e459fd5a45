package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"picturehub/internal/domain"
)

const pictureColumns = `id, url, thumbnail_url, preview_url, name, introduction, category, tags,
	pic_size, pic_width, pic_height, pic_scale, pic_format, user_id, space_id,
	review_status, review_message, reviewer_id, review_time, edit_time, created_at, updated_at`

var pictureSortColumns = map[string]string{
	"createTime": "created_at",
	"editTime":   "edit_time",
	"name":       "name",
	"picSize":    "pic_size",
	"picWidth":   "pic_width",
	"picHeight":  "pic_height",
}

type PictureRepository struct {
	db sqlx.ExtContext
}

func NewPictureRepository(db sqlx.ExtContext) *PictureRepository {
	return &PictureRepository{db: db}
}

func (r *PictureRepository) GetByID(ctx context.Context, id int64) (*domain.Picture, error) {
	var pic domain.Picture
	err := sqlx.GetContext(ctx, r.db, &pic,
		`SELECT `+pictureColumns+` FROM pictures WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get picture %d: %w", id, notFound(err))
	}
	return &pic, nil
}

func (r *PictureRepository) Create(ctx context.Context, pic *domain.Picture) error {
	query := `
        INSERT INTO pictures (url, thumbnail_url, preview_url, name, introduction, category, tags,
            pic_size, pic_width, pic_height, pic_scale, pic_format, user_id, space_id,
            review_status, review_message, reviewer_id, review_time, edit_time)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		pic.URL,
		pic.ThumbnailURL,
		pic.PreviewURL,
		pic.Name,
		pic.Introduction,
		pic.Category,
		pic.Tags,
		pic.PicSize,
		pic.PicWidth,
		pic.PicHeight,
		pic.PicScale,
		pic.PicFormat,
		pic.UserID,
		pic.SpaceID,
		pic.ReviewStatus,
		pic.ReviewMessage,
		pic.ReviewerID,
		pic.ReviewTime,
		pic.EditTime,
	).Scan(&pic.ID, &pic.CreatedAt, &pic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create picture: %w", err)
	}
	return nil
}

// Update rewrites every mutable column. The owner and creation time stay fixed.
func (r *PictureRepository) Update(ctx context.Context, pic *domain.Picture) error {
	query := `
        UPDATE pictures
        SET url = $1,
            thumbnail_url = $2,
            preview_url = $3,
            name = $4,
            introduction = $5,
            category = $6,
            tags = $7,
            pic_size = $8,
            pic_width = $9,
            pic_height = $10,
            pic_scale = $11,
            pic_format = $12,
            space_id = $13,
            review_status = $14,
            review_message = $15,
            reviewer_id = $16,
            review_time = $17,
            edit_time = $18,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $19
        RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		pic.URL,
		pic.ThumbnailURL,
		pic.PreviewURL,
		pic.Name,
		pic.Introduction,
		pic.Category,
		pic.Tags,
		pic.PicSize,
		pic.PicWidth,
		pic.PicHeight,
		pic.PicScale,
		pic.PicFormat,
		pic.SpaceID,
		pic.ReviewStatus,
		pic.ReviewMessage,
		pic.ReviewerID,
		pic.ReviewTime,
		pic.EditTime,
		pic.ID,
	).Scan(&pic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update picture %d: %w", pic.ID, notFound(err))
	}
	return nil
}

func (r *PictureRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pictures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	return checkAffected(result)
}

func (r *PictureRepository) DeleteBySpace(ctx context.Context, spaceID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pictures WHERE space_id = $1`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete space pictures: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (r *PictureRepository) List(ctx context.Context, q domain.PictureQuery) ([]domain.Picture, int64, error) {
	f := pictureFilter(q)

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM pictures`+f.where(), f.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count pictures: %w", err)
	}

	limit, args := f.page(q.PageSize, q.Offset())
	query := `SELECT ` + pictureColumns + ` FROM pictures` + f.where() +
		orderBy(q.SortField, q.SortOrder, pictureSortColumns, "created_at DESC, id DESC") + limit

	pictures := make([]domain.Picture, 0, q.PageSize)
	if err := sqlx.SelectContext(ctx, r.db, &pictures, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list pictures: %w", err)
	}
	return pictures, total, nil
}

func pictureFilter(q domain.PictureQuery) *filter {
	f := &filter{}
	if q.ID != nil {
		f.add("id = ?", *q.ID)
	}
	if q.UserID != "" {
		f.add("user_id = ?", q.UserID)
	}
	if q.SpaceID != nil {
		f.add("space_id = ?", *q.SpaceID)
	} else if q.NullSpaceID {
		f.add("space_id IS NULL")
	}
	if q.ReviewStatus != nil {
		f.add("review_status = ?", *q.ReviewStatus)
	}
	if q.ReviewerID != "" {
		f.add("reviewer_id = ?", q.ReviewerID)
	}
	if q.Name != "" {
		f.add("name ILIKE ?", like(q.Name))
	}
	if q.Introduction != "" {
		f.add("introduction ILIKE ?", like(q.Introduction))
	}
	if q.ReviewMessage != "" {
		f.add("review_message ILIKE ?", like(q.ReviewMessage))
	}
	if q.Category != "" {
		f.add("category = ?", q.Category)
	}
	if q.PicFormat != "" {
		f.add("pic_format ILIKE ?", like(q.PicFormat))
	}
	if q.SearchText != "" {
		pattern := like(q.SearchText)
		f.add("(name ILIKE ? OR introduction ILIKE ?)", pattern, pattern)
	}
	for _, tag := range q.Tags {
		f.add("tags @> jsonb_build_array(?::text)", tag)
	}
	return f
}

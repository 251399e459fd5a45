package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturehub/internal/domain"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

const applyDeltaQuery = `(?s)^\s*UPDATE\s+spaces\s+SET\s+total_size\s*=\s*GREATEST\(0,\s*total_size\s*\+\s*\$1\).*WHERE\s+id\s*=\s*\$3`

func TestApplyUsageDelta_Success(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(applyDeltaQuery).
		WithArgs(int64(2048), int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Spaces().ApplyUsageDelta(context.Background(), 7, 2048, 1)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUsageDelta_QuotaExceeded(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(applyDeltaQuery).
		WithArgs(int64(1<<30), int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+spaces\s+WHERE\s+id\s*=\s*\$1\)$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.Spaces().ApplyUsageDelta(context.Background(), 7, 1<<30, 1)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUsageDelta_MissingSpace(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(applyDeltaQuery).
		WithArgs(int64(-10), int64(-1), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.Spaces().ApplyUsageDelta(context.Background(), 99, -10, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpaceCreate_DuplicateUser(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+spaces`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Spaces().Create(context.Background(), &domain.Space{UserID: "u-1", SpaceName: "mine"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSpaceCreate_Success(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+spaces.*RETURNING\s+id,\s*created_at,\s*updated_at$`).
		WithArgs("u-1", "mine", domain.SpaceLevelCommon, int64(100*1024*1024), int64(100), int64(0), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	space := &domain.Space{UserID: "u-1", SpaceName: "mine", MaxSize: 100 * 1024 * 1024, MaxCount: 100}
	require.NoError(t, store.Spaces().Create(context.Background(), space))
	assert.Equal(t, int64(5), space.ID)
}

func TestPictureGetByID_NotFound(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+pictures\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(3)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Pictures().GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPictureList_PublicFilter(t *testing.T) {
	store, mock := newStoreWithMock(t)
	pass := domain.ReviewPass

	mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+pictures\s+WHERE\s+space_id\s+IS\s+NULL\s+AND\s+review_status\s*=\s*\$1\s+AND\s+tags\s+@>\s+jsonb_build_array\(\$2::text\)$`).
		WithArgs(pass, "cat").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	rows := sqlmock.NewRows([]string{"id", "url", "name", "tags", "pic_size", "review_status", "user_id", "created_at", "updated_at"}).
		AddRow(int64(1), "https://cdn/x.png", "x", []byte(`["cat"]`), int64(10), 1, "u-1", time.Now(), time.Now())
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+pictures\s+WHERE.*ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4$`).
		WithArgs(pass, "cat", 10, 10).
		WillReturnRows(rows)

	q := domain.PictureQuery{Current: 2, PageSize: 10, NullSpaceID: true, ReviewStatus: &pass, Tags: []string{"cat"}}
	pictures, total, err := store.Pictures().List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pictures, 1)
	assert.Equal(t, domain.Tags{"cat"}, pictures[0].Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	store, mock := newStoreWithMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(applyDeltaQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.Spaces().ApplyUsageDelta(ctx, 1, 10, 1)
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+pictures\s+WHERE\s+id`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Pictures().Delete(ctx, 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

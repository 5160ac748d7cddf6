package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/urban-sprawl/internal/raster"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Load_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT period, mask, saved_at FROM sprawl_baselines`).
		WithArgs("bogota", "2025-03").
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.Load(context.Background(), "bogota", p(2025, 3))
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	blob, err := raster.EncodeMask(maskOf(1, 4))
	require.NoError(t, err)
	saved := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`period < \$2`).
		WithArgs("bogota", "2025-03").
		WillReturnRows(pgxmock.NewRows([]string{"period", "mask", "saved_at"}).AddRow("2025-02", blob, saved))

	snap, err := s.Load(context.Background(), "bogota", p(2025, 3))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, p(2025, 2), snap.Period)
	assert.Equal(t, saved, snap.SavedAt)
	assert.True(t, snap.Mask.Equal(maskOf(1, 4)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(region, period\) DO UPDATE`).
		WithArgs("bogota", "2025-03", pgxmock.AnyArg(), 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), "bogota", p(2025, 3), maskOf(0, 1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Lock(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`pg_try_advisory_xact_lock`).
		WithArgs("sprawl:bogota").
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_xact_lock"}).AddRow(true))
	mock.ExpectCommit()

	unlock, err := s.Lock(context.Background(), "bogota")
	require.NoError(t, err)
	require.NoError(t, unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Lock_Held(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`pg_try_advisory_xact_lock`).
		WithArgs("sprawl:bogota").
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_xact_lock"}).AddRow(false))
	mock.ExpectRollback()

	_, err := s.Lock(context.Background(), "bogota")
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HistoryAndReset(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	saved := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT period, cells, length\(mask\), saved_at FROM sprawl_baselines`).
		WithArgs("bogota").
		WillReturnRows(pgxmock.NewRows([]string{"period", "cells", "length", "saved_at"}).
			AddRow("2025-01", 3, 40, saved).
			AddRow("2025-02", 5, 42, saved))
	mock.ExpectExec(`DELETE FROM sprawl_baselines`).
		WithArgs("bogota", "2025-02").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	hist, err := s.History(context.Background(), "bogota")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, p(2025, 2), hist[1].Period)
	assert.Equal(t, 5, hist[1].Cells)
	assert.Equal(t, 42, hist[1].Bytes)

	n, err := s.Reset(context.Background(), "bogota", p(2025, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sprawl_baselines`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsUpsert = UpsertConfig{
	Table:        "sprawl.statistics",
	Columns:      []string{"region", "period", "category", "area_m2"},
	ConflictKeys: []string{"region", "period", "category"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, statsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_sprawl_statistics"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sprawl_statistics"}, statsUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "sprawl"."statistics"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"bogota", "2025-03", "total", 10.0}, {"bogota", "2025-03", "SAC", 4.0}}
	n, err := BulkUpsert(context.Background(), mock, statsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sprawl_statistics"}, statsUpsert.Columns).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, statsUpsert, [][]any{{"bogota", "2025-03", "total", 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTx_LeavesCommitToCaller(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sprawl_statistics"}, statsUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "sprawl"."statistics"`).
		WillReturnError(fmt.Errorf("unique violation"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)
	_, err = UpsertTx(ctx, tx, statsUpsert, [][]any{{"bogota", "2025-03", "total", 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSERT ON CONFLICT")
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTx_Validation(t *testing.T) {
	_, err := UpsertTx(context.Background(), nil, UpsertConfig{Table: "t"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("sprawl.statistics", "tmp", []string{"k", "v"}, []string{"k"}, []string{"v"})
	assert.Equal(t, `INSERT INTO "sprawl"."statistics" ("k", "v") SELECT "k", "v" FROM "tmp" ON CONFLICT ("k") DO UPDATE SET "v" = EXCLUDED."v"`, got)

	got = upsertSQL("t", "tmp", []string{"k"}, []string{"k"}, nil)
	assert.Contains(t, got, "DO NOTHING")
}

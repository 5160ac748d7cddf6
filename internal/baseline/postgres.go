package baseline

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/db"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// PostgresStore implements Store on a pgx pool. Locks are transaction-scoped
// advisory locks, so a crashed writer releases its region automatically.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects and returns a PostgresStore.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, dsn, nil)
	if err != nil {
		return nil, eris.Wrap(err, "baseline: postgres")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close leaves the pool open.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for the PostGIS source and sink.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sprawl_baselines (
	region   TEXT NOT NULL,
	period   TEXT NOT NULL,
	mask     BYTEA NOT NULL,
	cells    INTEGER NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (region, period)
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "baseline: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, region string, period model.Period) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT period, mask, saved_at FROM sprawl_baselines
		 WHERE region = $1 AND period < $2
		 ORDER BY period DESC LIMIT 1`,
		region, period.String(),
	)
	snap, err := scanSnapshot(row, region)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "baseline: postgres load %s before %s", region, period)
	}
	return snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, region string, period model.Period, mask *raster.Mask) error {
	if err := checkRegion(region); err != nil {
		return err
	}
	blob, err := raster.EncodeMask(mask)
	if err != nil {
		return eris.Wrap(err, "baseline: postgres encode mask")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sprawl_baselines (region, period, mask, cells, saved_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (region, period) DO UPDATE SET
			mask = EXCLUDED.mask, cells = EXCLUDED.cells, saved_at = EXCLUDED.saved_at`,
		region, period.String(), blob, mask.Count(), time.Now().UTC(),
	)
	return eris.Wrapf(err, "baseline: postgres save %s %s", region, period)
}

// Lock holds pg_try_advisory_xact_lock inside a transaction that stays open
// until Unlock.
func (s *PostgresStore) Lock(ctx context.Context, region string) (Unlock, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "baseline: postgres lock begin")
	}
	var ok bool
	if err := tx.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtext($1))`, "sprawl:"+region,
	).Scan(&ok); err != nil {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(err, "baseline: postgres lock %s", region)
	}
	if !ok {
		_ = tx.Rollback(ctx)
		return nil, ErrLocked
	}
	zap.L().Debug("baseline: lock acquired", zap.String("region", region))
	return func(ctx context.Context) error {
		return eris.Wrapf(tx.Commit(ctx), "baseline: postgres unlock %s", region)
	}, nil
}

func (s *PostgresStore) History(ctx context.Context, region string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT period, cells, length(mask), saved_at FROM sprawl_baselines
		 WHERE region = $1 ORDER BY period`,
		region,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "baseline: postgres history %s", region)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows, region)
		if err != nil {
			return nil, eris.Wrap(err, "baseline: postgres scan history")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "baseline: postgres history rows")
}

func (s *PostgresStore) Reset(ctx context.Context, region string, from model.Period) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sprawl_baselines WHERE region = $1 AND period >= $2`, region, from.String())
	if err != nil {
		return 0, eris.Wrapf(err, "baseline: postgres reset %s", region)
	}
	return int(tag.RowsAffected()), nil
}

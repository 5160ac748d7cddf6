package baseline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// DefaultLockTTL is how long a sqlite lock row is honoured before another
// writer may take it over.
const DefaultLockTTL = 6 * time.Hour

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	LockTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "baseline: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "baseline: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, LockTTL: DefaultLockTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS baselines (
	region   TEXT NOT NULL,
	period   TEXT NOT NULL,
	mask     BLOB NOT NULL,
	cells    INTEGER NOT NULL,
	saved_at DATETIME NOT NULL,
	PRIMARY KEY (region, period)
);

CREATE TABLE IF NOT EXISTS baseline_locks (
	region      TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "baseline: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, region string, period model.Period) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT period, mask, saved_at FROM baselines
		 WHERE region = ? AND period < ?
		 ORDER BY period DESC LIMIT 1`,
		region, period.String(),
	)
	snap, err := scanSnapshot(row, region)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "baseline: sqlite load %s before %s", region, period)
	}
	return snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, region string, period model.Period, mask *raster.Mask) error {
	if err := checkRegion(region); err != nil {
		return err
	}
	blob, err := raster.EncodeMask(mask)
	if err != nil {
		return eris.Wrap(err, "baseline: sqlite encode mask")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO baselines (region, period, mask, cells, saved_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (region, period) DO UPDATE SET
			mask = excluded.mask, cells = excluded.cells, saved_at = excluded.saved_at`,
		region, period.String(), blob, mask.Count(), time.Now().UTC(),
	)
	return eris.Wrapf(err, "baseline: sqlite save %s %s", region, period)
}

func (s *SQLiteStore) Lock(ctx context.Context, region string) (Unlock, error) {
	holder := uuid.New().String()
	now := time.Now().UTC()
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM baseline_locks WHERE region = ? AND acquired_at < ?`,
		region, now.Add(-ttl),
	); err != nil {
		return nil, eris.Wrap(err, "baseline: sqlite expire lock")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO baseline_locks (region, holder, acquired_at) VALUES (?, ?, ?)
		 ON CONFLICT (region) DO NOTHING`,
		region, holder, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "baseline: sqlite lock %s", region)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, eris.Wrap(err, "baseline: sqlite lock rows affected")
	} else if n == 0 {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM baseline_locks WHERE region = ? AND holder = ?`, region, holder)
		return eris.Wrapf(err, "baseline: sqlite unlock %s", region)
	}, nil
}

func (s *SQLiteStore) History(ctx context.Context, region string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT period, cells, length(mask), saved_at FROM baselines WHERE region = ? ORDER BY period`,
		region,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "baseline: sqlite history %s", region)
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows, region)
		if err != nil {
			return nil, eris.Wrap(err, "baseline: sqlite scan history")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "baseline: sqlite history rows")
}

func (s *SQLiteStore) Reset(ctx context.Context, region string, from model.Period) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM baselines WHERE region = ? AND period >= ?`, region, from.String())
	if err != nil {
		return 0, eris.Wrapf(err, "baseline: sqlite reset %s", region)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "baseline: sqlite reset rows affected")
	}
	return int(n), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable, region string) (*Snapshot, error) {
	var (
		period string
		blob   []byte
		saved  time.Time
	)
	if err := row.Scan(&period, &blob, &saved); err != nil {
		return nil, err
	}
	p, err := model.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	mask, err := raster.DecodeMask(blob)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Region: region, Period: p, Mask: mask, SavedAt: saved}, nil
}

func scanEntry(row scannable, region string) (Entry, error) {
	var period string
	e := Entry{Region: region}
	if err := row.Scan(&period, &e.Cells, &e.Bytes, &e.SavedAt); err != nil {
		return Entry{}, err
	}
	p, err := model.ParsePeriod(period)
	if err != nil {
		return Entry{}, err
	}
	e.Period = p
	return e, nil
}

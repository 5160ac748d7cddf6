// Package baseline persists the cumulative built-up mask per region and
// period. A run loads the latest snapshot before its period, ORs in the
// current mask and saves the result under its own period, so rerunning a
// period is idempotent.
package baseline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// ErrLocked means another writer holds the region.
var ErrLocked = eris.New("baseline: region locked")

// Snapshot is a stored baseline.
type Snapshot struct {
	Region  string
	Period  model.Period
	Mask    *raster.Mask
	SavedAt time.Time
}

// Entry describes a snapshot without its mask.
type Entry struct {
	Region  string       `json:"region"`
	Period  model.Period `json:"period"`
	Cells   int          `json:"cells"`
	Bytes   int          `json:"bytes"`
	SavedAt time.Time    `json:"saved_at"`
}

// Unlock releases a region lock.
type Unlock func(ctx context.Context) error

// Store is the baseline persistence boundary.
type Store interface {
	// Load returns the latest snapshot strictly before period, or nil.
	Load(ctx context.Context, region string, period model.Period) (*Snapshot, error)
	// Save upserts the snapshot of period.
	Save(ctx context.Context, region string, period model.Period, mask *raster.Mask) error
	// Lock takes the single-writer lock of region or fails with ErrLocked.
	Lock(ctx context.Context, region string) (Unlock, error)
	// History lists snapshots of region in period order.
	History(ctx context.Context, region string) ([]Entry, error)
	// Reset deletes snapshots of region at or after from and returns how many
	// were removed.
	Reset(ctx context.Context, region string, from model.Period) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a store for driver "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	}
	return nil, eris.Errorf("baseline: unknown driver %q", driver)
}

func checkRegion(region string) error {
	if region == "" {
		return eris.New("baseline: empty region")
	}
	return nil
}

package baseline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// MemoryStore keeps snapshots in process. Masks are copied on the way in and
// out.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]map[model.Period]Snapshot
	locks     map[string]bool
	now       func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]map[model.Period]Snapshot),
		locks:     make(map[string]bool),
		now:       time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, region string, period model.Period) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Snapshot
	for p, snap := range s.snapshots[region] {
		if !p.Before(period) {
			continue
		}
		if best == nil || best.Period.Before(p) {
			snap := snap
			best = &snap
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Mask = best.Mask.Clone()
	return best, nil
}

func (s *MemoryStore) Save(_ context.Context, region string, period model.Period, mask *raster.Mask) error {
	if err := checkRegion(region); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byPeriod := s.snapshots[region]
	if byPeriod == nil {
		byPeriod = make(map[model.Period]Snapshot)
		s.snapshots[region] = byPeriod
	}
	byPeriod[period] = Snapshot{Region: region, Period: period, Mask: mask.Clone(), SavedAt: s.now().UTC()}
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, region string) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[region] {
		return nil, ErrLocked
	}
	s.locks[region] = true
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			s.mu.Lock()
			delete(s.locks, region)
			s.mu.Unlock()
		})
		return nil
	}, nil
}

func (s *MemoryStore) History(_ context.Context, region string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.snapshots[region]))
	for _, snap := range s.snapshots[region] {
		out = append(out, Entry{Region: region, Period: snap.Period, Cells: snap.Mask.Count(), SavedAt: snap.SavedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (s *MemoryStore) Reset(_ context.Context, region string, from model.Period) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p := range s.snapshots[region] {
		if !p.Before(from) {
			delete(s.snapshots[region], p)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

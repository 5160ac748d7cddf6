package output

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
)

// DirSink writes the dataset under <Root>/<region>/<YYYY_MM>/.
type DirSink struct {
	Root string
	// SRID of the GeoJSON coordinates; zero means EPSG:4326.
	SRID int
	// XLSX also writes statistics.xlsx.
	XLSX bool
}

// Dir returns the output directory of a region and period.
func (s *DirSink) Dir(region string, period model.Period) string {
	return filepath.Join(s.Root, region, period.Key())
}

// Write implements Sink. Files are written to a temporary name and renamed,
// so readers never see a partial artifact.
func (s *DirSink) Write(ctx context.Context, ds *Dataset) error {
	if err := validate(ds); err != nil {
		return err
	}
	srid := s.SRID
	if srid == 0 {
		srid = crs.WGS84
	}
	dir := s.Dir(ds.Region, ds.Period)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "output: mkdir %s", dir)
	}

	type artifact struct {
		name   string
		render func() ([]byte, error)
	}
	artifacts := []artifact{
		{ExpansionFile, func() ([]byte, error) { return expansionCollection(ds, srid) }},
		{IntersectionsFile, func() ([]byte, error) { return intersectionsCollection(ds, srid) }},
		{StatisticsFile, func() ([]byte, error) { return statisticsCSV(ds.Statistics) }},
	}
	if ds.UnitStatistics != nil {
		artifacts = append(artifacts, artifact{UnitsFile, func() ([]byte, error) { return unitsCSV(ds.UnitStatistics) }})
	} else if err := removeIfExists(filepath.Join(dir, UnitsFile)); err != nil {
		return err
	}
	if s.XLSX {
		artifacts = append(artifacts, artifact{WorkbookFile, func() ([]byte, error) { return workbook(ds) }})
	}
	if ds.Diagnostics != nil {
		artifacts = append(artifacts, artifact{DiagnosticsFile, func() ([]byte, error) {
			b, err := json.MarshalIndent(ds.Diagnostics, "", "  ")
			return b, eris.Wrap(err, "output: marshal diagnostics")
		}})
	}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := a.render()
		if err != nil {
			return err
		}
		if err := writeAtomic(filepath.Join(dir, a.name), b); err != nil {
			return err
		}
	}
	zap.L().Info("output written",
		zap.String("component", "output"),
		zap.String("dir", dir),
		zap.Int("artifacts", len(artifacts)),
	)
	return nil
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "output: create temp for %s", path)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "output: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "output: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "output: rename %s", path)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "output: remove %s", path)
	}
	return nil
}

// Periods lists the periods with output for a region, oldest first.
func Periods(root, region string) ([]model.Period, error) {
	entries, err := os.ReadDir(filepath.Join(root, region))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "output: list %s", region)
	}
	var out []model.Period
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := model.ParsePeriod(e.Name())
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// IsArtifact reports whether name is a file a run produces.
func IsArtifact(name string) bool {
	for _, a := range Artifacts {
		if a == name {
			return true
		}
	}
	return false
}

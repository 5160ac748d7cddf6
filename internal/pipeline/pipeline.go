// Package pipeline runs one region and period end to end: fetch the
// classification, derive the built-up delta against the stored baseline,
// intersect it with the protected areas and publish the statistics.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/baseline"
	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/expansion"
	"github.com/sells-group/urban-sprawl/internal/intersect"
	"github.com/sells-group/urban-sprawl/internal/layers"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/output"
	"github.com/sells-group/urban-sprawl/internal/provider"
	"github.com/sells-group/urban-sprawl/internal/raster"
	"github.com/sells-group/urban-sprawl/internal/stats"
)

// LayerSource supplies the protected areas and planning units of a run.
type LayerSource interface {
	Load(ctx context.Context) (*layers.Set, error)
}

// ConfiguredLayers loads a fixed list of layer specs.
type ConfiguredLayers struct {
	Loader *layers.Loader
	Areas  []layers.Spec
	// Units is nil when no planning-unit layer is configured.
	Units *layers.Spec
}

// Load implements LayerSource.
func (c ConfiguredLayers) Load(ctx context.Context) (*layers.Set, error) {
	return c.Loader.Load(ctx, c.Areas, c.Units)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Provider   provider.Provider
	Layers     LayerSource
	Baselines  baseline.Store
	Classifier *raster.Classifier
	Detector   *expansion.Detector
	Engine     *intersect.Engine
	Sink       output.Sink
}

// Pipeline orchestrates classify, detect, intersect and aggregate.
type Pipeline struct {
	Deps
	now func() time.Time
}

// New checks that every collaborator is present.
func New(d Deps) (*Pipeline, error) {
	switch {
	case d.Provider == nil:
		return nil, eris.New("pipeline: no raster provider")
	case d.Layers == nil:
		return nil, eris.New("pipeline: no layer source")
	case d.Baselines == nil:
		return nil, eris.New("pipeline: no baseline store")
	case d.Classifier == nil:
		return nil, eris.New("pipeline: no classifier")
	case d.Detector == nil:
		return nil, eris.New("pipeline: no detector")
	case d.Engine == nil:
		return nil, eris.New("pipeline: no intersection engine")
	case d.Sink == nil:
		return nil, eris.New("pipeline: no output sink")
	}
	if d.Detector.WorkingSRID != d.Engine.WorkingSRID {
		return nil, eris.Errorf("pipeline: detector works in EPSG:%d, engine in EPSG:%d",
			d.Detector.WorkingSRID, d.Engine.WorkingSRID)
	}
	return &Pipeline{Deps: d, now: time.Now}, nil
}

// Result is the outcome of one period.
type Result struct {
	Period  model.Period
	Dataset *output.Dataset
	// Skipped is set by RunRange when the period had no imagery.
	Skipped bool
}

// Run processes one period. The baseline is saved only after the dataset
// has been written, so a failed run leaves it untouched.
func (p *Pipeline) Run(ctx context.Context, region string, period model.Period) (*Result, error) {
	set, err := p.Layers.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load layers")
	}
	return p.run(ctx, region, period, set)
}

// RunRange processes from..to inclusive, oldest first. Periods without
// imagery are skipped; any other failure stops the range.
func (p *Pipeline) RunRange(ctx context.Context, region string, from, to model.Period) ([]Result, error) {
	if to.Before(from) {
		return nil, eris.Errorf("pipeline: range %s..%s is reversed", from, to)
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("region", region))

	set, err := p.Layers.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load layers")
	}

	var out []Result
	for _, period := range model.PeriodRange(from, to) {
		res, err := p.run(ctx, region, period, set)
		if eris.Is(err, provider.ErrNoImageryAvailable) {
			log.Info("pipeline: no imagery, skipping", zap.String("period", period.String()))
			out = append(out, Result{Period: period, Skipped: true})
			continue
		}
		if err != nil {
			return out, eris.Wrapf(err, "pipeline: period %s", period)
		}
		out = append(out, *res)
	}
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, region string, period model.Period, set *layers.Set) (*Result, error) {
	diag := &model.Diagnostics{
		RunID:       uuid.NewString(),
		Region:      region,
		Period:      period,
		Status:      model.RunStatusComplete,
		WorkingSRID: p.Detector.WorkingSRID,
		Excluded:    []model.Exclusion{},
		StartedAt:   p.now().UTC(),
	}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("region", region),
		zap.String("period", period.String()),
		zap.String("run_id", diag.RunID),
	)
	log.Info("pipeline: starting run")

	ras, err := p.Provider.Raster(ctx, region, period)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch raster")
	}

	unlock, err := p.Baselines.Lock(ctx, region)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: lock baseline")
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			log.Warn("pipeline: release baseline lock", zap.Error(uerr))
		}
	}()

	snap, err := p.Baselines.Load(ctx, region, period)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load baseline")
	}
	var prev *raster.Mask
	if snap != nil {
		prev = snap.Mask
		bp := snap.Period
		diag.BaselinePeriod = &bp
	}

	mask, err := p.Classifier.Classify(ras)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify")
	}

	det, err := p.Detector.Detect(mask, prev, period)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: detect expansion")
	}
	diag.HasBaseline = det.HasBaseline
	diag.NewCells = det.NewCells
	diag.Polygons = len(det.Polygons)
	diag.NoiseFiltered = det.NoiseFiltered
	diag.NoiseFilteredM2 = det.NoiseFilteredM2

	inter := p.Engine.Intersect(det.Polygons, set.Areas)
	diag.Repaired = inter.Repaired
	diag.Exclude(inter.Excluded...)

	ds := &output.Dataset{
		Region:      region,
		Period:      period,
		Polygons:    det.Polygons,
		Records:     inter.Records,
		Coverage:    inter.Coverage,
		Statistics:  append(stats.Aggregate(det.Polygons, inter.Records, period), stats.Coverage(inter.Coverage, period)...),
		Diagnostics: diag,
	}
	if len(set.Units) > 0 {
		app := p.Engine.Apportion(det.Polygons, set.Areas, set.Units)
		diag.Exclude(app.Excluded...)
		ds.UnitStatistics = stats.AggregateUnits(app.Units, app.Shares, period)
	}

	if se, err := scaleError(ras.Grid, p.Detector.WorkingSRID); err != nil {
		log.Warn("pipeline: scale check", zap.Error(err))
	} else {
		diag.AreaScaleError = se
	}
	diag.FinishedAt = p.now().UTC()

	if err := p.Sink.Write(ctx, ds); err != nil {
		return nil, eris.Wrap(err, "pipeline: write output")
	}
	if err := p.Baselines.Save(ctx, region, period, det.Baseline); err != nil {
		return nil, eris.Wrap(err, "pipeline: save baseline")
	}

	log.Info("pipeline: run complete",
		zap.String("status", string(diag.Status)),
		zap.Int("new_cells", diag.NewCells),
		zap.Int("polygons", diag.Polygons),
		zap.Int("records", len(inter.Records)),
		zap.Int("excluded", len(diag.Excluded)),
		zap.Float64("area_scale_error", diag.AreaScaleError),
	)
	return &Result{Period: period, Dataset: ds}, nil
}

// scaleError measures the grid extent in the working CRS against its
// geodesic area.
func scaleError(g raster.Grid, workingSRID int) (float64, error) {
	minX, minY, maxX, maxY := g.Extent()
	corners := [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
	if g.SRID != workingSRID {
		tr, err := crs.NewTransformer(g.SRID, workingSRID)
		if err != nil {
			return 0, err
		}
		for i, c := range corners {
			x, y := tr.Point(c[0], c[1])
			corners[i] = [2]float64{x, y}
		}
	}
	return crs.ScaleError(corners, workingSRID)
}

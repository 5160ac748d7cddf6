package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/baseline"
	"github.com/sells-group/urban-sprawl/internal/config"
	"github.com/sells-group/urban-sprawl/internal/db"
	"github.com/sells-group/urban-sprawl/internal/expansion"
	"github.com/sells-group/urban-sprawl/internal/intersect"
	"github.com/sells-group/urban-sprawl/internal/layers"
	"github.com/sells-group/urban-sprawl/internal/output"
	"github.com/sells-group/urban-sprawl/internal/pipeline"
	"github.com/sells-group/urban-sprawl/internal/provider"
	"github.com/sells-group/urban-sprawl/internal/raster"
	"github.com/sells-group/urban-sprawl/internal/resilience"
)

// env holds everything a command opened and must close.
type env struct {
	Pool      *pgxpool.Pool
	Baselines baseline.Store
	Pipeline  *pipeline.Pipeline
}

// Close releases the store and the pool.
func (e *env) Close() {
	if e.Baselines != nil {
		if err := e.Baselines.Close(); err != nil {
			zap.L().Warn("close baseline store", zap.Error(err))
		}
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// needsPool reports whether any component reads or writes Postgres.
func needsPool(c *config.Config) bool {
	if c.Output.PostGIS || (c.Baseline.Driver == "postgres" && c.Baseline.DSN == "") {
		return true
	}
	for _, l := range c.Layers {
		if l.Format == layers.FormatPostGIS {
			return true
		}
	}
	return c.Units.Format == layers.FormatPostGIS
}

// openPool connects to database.url when some component needs it.
func openPool(ctx context.Context, c *config.Config) (*pgxpool.Pool, error) {
	if !needsPool(c) {
		return nil, nil
	}
	if c.Database.URL == "" {
		return nil, eris.New("database.url is required for the configured postgres components")
	}
	return db.Connect(ctx, c.Database.URL, &db.PoolConfig{
		MaxConns: c.Database.MaxConns,
		MinConns: c.Database.MinConns,
	})
}

// openBaselines opens the configured store. The postgres driver shares the
// pool unless it has a dsn of its own.
func openBaselines(ctx context.Context, c *config.Config, pool *pgxpool.Pool) (baseline.Store, error) {
	if c.Baseline.Driver == "postgres" && c.Baseline.DSN == "" && pool != nil {
		return baseline.NewPostgresWithPool(pool), nil
	}
	return baseline.Open(ctx, c.Baseline.Driver, c.Baseline.DSN)
}

func layerSpec(l config.LayerConfig) layers.Spec {
	return layers.Spec{
		Name:      l.Name,
		Category:  l.Category,
		Path:      l.Path,
		Format:    l.Format,
		SRID:      l.SRID,
		NameField: l.NameField,
	}
}

// layerSource converts the configured layers and registers PostGIS tables.
func layerSource(c *config.Config, pool db.Pool) pipeline.ConfiguredLayers {
	src := pipeline.ConfiguredLayers{Loader: layers.NewLoader(c.Analysis.WorkingSRID)}
	var tables []string
	for _, l := range c.Layers {
		s := layerSpec(l)
		if s.ResolvedFormat() == layers.FormatPostGIS {
			tables = append(tables, s.Path)
		}
		src.Areas = append(src.Areas, s)
	}
	if c.Units.Path != "" {
		u := layerSpec(c.Units)
		if u.Name == "" {
			u.Name = "planning_units"
		}
		if u.ResolvedFormat() == layers.FormatPostGIS {
			tables = append(tables, u.Path)
		}
		src.Units = &u
	}
	if pool != nil && len(tables) > 0 {
		src.Loader.WithPostGIS(layers.NewPostGISSource(pool, tables...))
	}
	return src
}

// rasterProvider builds the configured provider, wrapped with retries.
func rasterProvider(c *config.Config) (provider.Provider, error) {
	var p provider.Provider
	switch c.Raster.Provider {
	case "file":
		p = &provider.FileProvider{Root: c.Raster.Root, SRID: c.Raster.SRID}
	case "http":
		var br *resilience.Breaker
		if c.Raster.BreakerThreshold > 0 {
			br = resilience.NewBreaker(c.Raster.BreakerThreshold, time.Duration(c.Raster.BreakerCooldownSecs)*time.Second)
		}
		hp, err := provider.NewHTTPProvider(c.Raster.BaseURL, c.Raster.SRID, provider.HTTPOptions{
			Timeout:    c.Raster.Timeout(),
			UserAgent:  c.Raster.UserAgent,
			RatePerSec: c.Raster.RatePerSec,
			Breaker:    br,
		})
		if err != nil {
			return nil, err
		}
		p = hp
	case "ftp":
		fp, err := provider.NewFTPProvider(c.Raster.BaseURL, c.Raster.SRID)
		if err != nil {
			return nil, err
		}
		p = fp
	default:
		return nil, eris.Errorf("unsupported raster provider: %s", c.Raster.Provider)
	}
	return provider.Retrying{
		Provider: p,
		Backoff:  resilience.BackoffFromConfig(c.Retry.Attempts, c.Retry.InitialMs, c.Retry.MaxMs),
	}, nil
}

func classifier(c *config.Config) (*raster.Classifier, error) {
	scheme := &raster.DynamicWorld
	if c.Analysis.SchemePath != "" {
		s, err := raster.LoadScheme(c.Analysis.SchemePath)
		if err != nil {
			return nil, err
		}
		scheme = s
	}
	builtup, err := scheme.ClassSet(c.Analysis.BuiltupClasses)
	if err != nil {
		return nil, eris.Wrap(err, "builtup classes")
	}
	return raster.NewClassifier(builtup, scheme)
}

func sinks(c *config.Config, pool db.Pool) output.Sink {
	out := output.Multi{&output.DirSink{Root: c.Output.Dir, SRID: c.Output.SRID, XLSX: c.Output.XLSX}}
	if c.Output.PostGIS && pool != nil {
		out = append(out, &output.PostGISSink{Pool: pool})
	}
	return out
}

// initPipeline wires every collaborator from the loaded config.
func initPipeline(ctx context.Context) (*env, error) {
	e := &env{}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.Pool = pool
	var dbPool db.Pool
	if pool != nil {
		dbPool = pool
	}

	if e.Baselines, err = openBaselines(ctx, cfg, pool); err != nil {
		return nil, eris.Wrap(err, "open baseline store")
	}
	if err := e.Baselines.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "migrate baseline store")
	}

	prov, err := rasterProvider(cfg)
	if err != nil {
		return nil, err
	}
	cls, err := classifier(cfg)
	if err != nil {
		return nil, err
	}
	det, err := expansion.NewDetector(cfg.Analysis.MinAreaM2, cfg.Analysis.WorkingSRID)
	if err != nil {
		return nil, err
	}
	eng, err := intersect.NewEngine(cfg.Analysis.Epsilon, cfg.Analysis.WorkingSRID)
	if err != nil {
		return nil, err
	}

	e.Pipeline, err = pipeline.New(pipeline.Deps{
		Provider:   prov,
		Layers:     layerSource(cfg, dbPool),
		Baselines:  e.Baselines,
		Classifier: cls,
		Detector:   det,
		Engine:     eng,
		Sink:       sinks(cfg, dbPool),
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return e, nil
}

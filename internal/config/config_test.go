package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bogota", cfg.Region)
	assert.Equal(t, 9377, cfg.Analysis.WorkingSRID)
	assert.Equal(t, []string{"built"}, cfg.Analysis.BuiltupClasses)
	assert.InDelta(t, 1e-9, cfg.Analysis.Epsilon, 1e-15)
	assert.Zero(t, cfg.Analysis.MinAreaM2)
	assert.Equal(t, "file", cfg.Raster.Provider)
	assert.Equal(t, 4326, cfg.Raster.SRID)
	assert.Equal(t, 60*time.Second, cfg.Raster.Timeout())
	assert.Equal(t, 5, cfg.Raster.BreakerThreshold)
	assert.Equal(t, "NOMBRE", cfg.Units.NameField)
	assert.Equal(t, "sqlite", cfg.Baseline.Driver)
	assert.Equal(t, "sprawl.db", cfg.Baseline.DSN)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, 4326, cfg.Output.SRID)
	assert.True(t, cfg.Output.XLSX)
	assert.False(t, cfg.Output.PostGIS)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 1000, cfg.Retry.InitialMs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
region: bogota
analysis:
  min_area_m2: 900
  builtup_classes: [built, "7"]
layers:
  - name: sac
    category: SAC
    path: layers/sac.geojson
  - name: eep
    category: EEP
    path: layers/eep.shp
    srid: 9377
    name_field: NOM_EEP
units:
  path: layers/upl.shp
  srid: 9377
baseline:
  driver: memory
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 900, cfg.Analysis.MinAreaM2, 1e-9)
	assert.Equal(t, []string{"built", "7"}, cfg.Analysis.BuiltupClasses)
	require.Len(t, cfg.Layers, 2)
	assert.Equal(t, "SAC", cfg.Layers[0].Category)
	assert.Equal(t, "NOM_EEP", cfg.Layers[1].NameField)
	assert.Equal(t, 9377, cfg.Layers[1].SRID)
	assert.Equal(t, "layers/upl.shp", cfg.Units.Path)
	// Defaults still apply for unset values
	assert.Equal(t, "NOMBRE", cfg.Units.NameField)
	assert.Equal(t, "memory", cfg.Baseline.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
baseline:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SPRAWL_BASELINE_DRIVER", "postgres")
	t.Setenv("SPRAWL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Baseline.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SPRAWL_SERVER_PORT", "3000")
	t.Setenv("SPRAWL_ANALYSIS_WORKING_SRID", "3116")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3116, cfg.Analysis.WorkingSRID)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("region: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the required fields populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{Region: "bogota"}
	cfg.Analysis.BuiltupClasses = []string{"built"}
	cfg.Raster.Provider = "file"
	cfg.Raster.Root = "data"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no region", func(c *Config) { c.Region = " " }, "region is required"},
		{"path region", func(c *Config) { c.Region = "../etc" }, "plain name"},
		{"no classes", func(c *Config) { c.Analysis.BuiltupClasses = nil }, "builtup_classes"},
		{"negative area", func(c *Config) { c.Analysis.MinAreaM2 = -1 }, "min_area_m2"},
		{"unknown provider", func(c *Config) { c.Raster.Provider = "s3" }, "unknown raster.provider"},
		{"file without root", func(c *Config) { c.Raster.Root = "" }, "raster.root"},
		{"http without url", func(c *Config) { c.Raster.Provider = "http" }, "raster.base_url"},
		{"ftp with url", func(c *Config) {
			c.Raster.Provider = "ftp"
			c.Raster.BaseURL = "ftp://example.org/exports"
		}, ""},
		{"layer without path", func(c *Config) {
			c.Layers = []LayerConfig{{Name: "sac", Category: "SAC"}}
		}, "layers[0]"},
		{"postgis without database", func(c *Config) { c.Output.PostGIS = true }, "database.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

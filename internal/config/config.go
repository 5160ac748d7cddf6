package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Region   string         `yaml:"region" mapstructure:"region"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Layers   []LayerConfig  `yaml:"layers" mapstructure:"layers"`
	Units    LayerConfig    `yaml:"units" mapstructure:"units"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Baseline BaselineConfig `yaml:"baseline" mapstructure:"baseline"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig controls classification, detection and intersection.
type AnalysisConfig struct {
	WorkingSRID int     `yaml:"working_srid" mapstructure:"working_srid"`
	MinAreaM2   float64 `yaml:"min_area_m2" mapstructure:"min_area_m2"`
	// BuiltupClasses are class names or numbers of the scheme.
	BuiltupClasses []string `yaml:"builtup_classes" mapstructure:"builtup_classes"`
	// SchemePath is a YAML class scheme; empty means Dynamic World.
	SchemePath string  `yaml:"scheme_path" mapstructure:"scheme_path"`
	Epsilon    float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// RasterConfig selects and configures the raster provider.
type RasterConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // file, http or ftp
	Root        string  `yaml:"root" mapstructure:"root"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	SRID        int     `yaml:"srid" mapstructure:"srid"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`

	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the request timeout.
func (r RasterConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// LayerConfig is one protected-area or planning-unit layer.
type LayerConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Category  string `yaml:"category" mapstructure:"category"`
	Path      string `yaml:"path" mapstructure:"path"`
	Format    string `yaml:"format" mapstructure:"format"`
	SRID      int    `yaml:"srid" mapstructure:"srid"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
}

// DatabaseConfig is the Postgres connection shared by the PostGIS layer
// source, the PostGIS sink and the postgres baseline store.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BaselineConfig configures the baseline store.
type BaselineConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite or postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// OutputConfig configures the output dataset.
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	SRID    int    `yaml:"srid" mapstructure:"srid"`
	XLSX    bool   `yaml:"xlsx" mapstructure:"xlsx"`
	PostGIS bool   `yaml:"postgis" mapstructure:"postgis"`
}

// RetryConfig configures provider retries.
type RetryConfig struct {
	Attempts  int `yaml:"attempts" mapstructure:"attempts"`
	InitialMs int `yaml:"initial_ms" mapstructure:"initial_ms"`
	MaxMs     int `yaml:"max_ms" mapstructure:"max_ms"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return eris.New("config: region is required")
	}
	if strings.ContainsAny(c.Region, `/\.`) {
		return eris.Errorf("config: region %q must be a plain name", c.Region)
	}
	if len(c.Analysis.BuiltupClasses) == 0 {
		return eris.New("config: analysis.builtup_classes is empty")
	}
	if c.Analysis.MinAreaM2 < 0 {
		return eris.New("config: analysis.min_area_m2 must not be negative")
	}
	switch c.Raster.Provider {
	case "file":
		if c.Raster.Root == "" {
			return eris.New("config: raster.root is required for the file provider")
		}
	case "http", "ftp":
		if c.Raster.BaseURL == "" {
			return eris.Errorf("config: raster.base_url is required for the %s provider", c.Raster.Provider)
		}
	default:
		return eris.Errorf("config: unknown raster.provider %q", c.Raster.Provider)
	}
	for i, l := range c.Layers {
		if l.Path == "" || l.Category == "" {
			return eris.Errorf("config: layers[%d] needs path and category", i)
		}
	}
	if c.Output.PostGIS && c.Database.URL == "" {
		return eris.New("config: output.postgis requires database.url")
	}
	return nil
}

// Load reads config.yaml from the working directory (optional), applies
// SPRAWL_* environment overrides and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("region", "bogota")
	v.SetDefault("analysis.working_srid", 9377)
	v.SetDefault("analysis.min_area_m2", 0)
	v.SetDefault("analysis.builtup_classes", []string{"built"})
	v.SetDefault("analysis.epsilon", 1e-9)
	v.SetDefault("raster.provider", "file")
	v.SetDefault("raster.root", "data/rasters")
	v.SetDefault("raster.srid", 4326)
	v.SetDefault("raster.rate_per_sec", 1)
	v.SetDefault("raster.timeout_secs", 60)
	v.SetDefault("raster.breaker_threshold", 5)
	v.SetDefault("raster.breaker_cooldown_secs", 60)
	v.SetDefault("units.name_field", "NOMBRE")
	v.SetDefault("baseline.driver", "sqlite")
	v.SetDefault("baseline.dsn", "sprawl.db")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.srid", 4326)
	v.SetDefault("output.xlsx", true)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.initial_ms", 1000)
	v.SetDefault("retry.max_ms", 30000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

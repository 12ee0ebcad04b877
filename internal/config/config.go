package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MatchConfig holds the scoring constants and selection limits.
// Point values are awarded per criterion tier; tolerances are multipliers
// applied to the request's bound.
type MatchConfig struct {
	// Price.
	PricePoints        int     `yaml:"price_points" mapstructure:"price_points"`
	PriceNearPoints    int     `yaml:"price_near_points" mapstructure:"price_near_points"`
	PriceMissingPoints int     `yaml:"price_missing_points" mapstructure:"price_missing_points"`
	PriceTolerance     float64 `yaml:"price_tolerance" mapstructure:"price_tolerance"`

	// Area.
	AreaPoints        int     `yaml:"area_points" mapstructure:"area_points"`
	AreaNearPoints    int     `yaml:"area_near_points" mapstructure:"area_near_points"`
	AreaMissingPoints int     `yaml:"area_missing_points" mapstructure:"area_missing_points"`
	AreaTolerance     float64 `yaml:"area_tolerance" mapstructure:"area_tolerance"`

	// Layout.
	LayoutPoints        int `yaml:"layout_points" mapstructure:"layout_points"`
	LayoutNearPoints    int `yaml:"layout_near_points" mapstructure:"layout_near_points"`
	LayoutMissingPoints int `yaml:"layout_missing_points" mapstructure:"layout_missing_points"`

	// Location bonus.
	LocationPoints         int `yaml:"location_points" mapstructure:"location_points"`
	LocationDistrictPoints int `yaml:"location_district_points" mapstructure:"location_district_points"`

	// Selection.
	MinScore        int     `yaml:"min_score" mapstructure:"min_score"`
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`
	DefaultRadiusKM float64 `yaml:"default_radius_km" mapstructure:"default_radius_km"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`

	// WeightsFile optionally points at a YAML file overriding the values above.
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// GeocodeConfig configures the address geocoder.
type GeocodeConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalMS  int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CountryCodes   string `yaml:"country_codes" mapstructure:"country_codes"`
	MaxAttempts    int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMS int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetMatchDefaults registers the default scoring constants on v.
func SetMatchDefaults(v *viper.Viper) {
	v.SetDefault("match.price_points", 45)
	v.SetDefault("match.price_near_points", 20)
	v.SetDefault("match.price_missing_points", 10)
	v.SetDefault("match.price_tolerance", 1.10)
	v.SetDefault("match.area_points", 25)
	v.SetDefault("match.area_near_points", 12)
	v.SetDefault("match.area_missing_points", 8)
	v.SetDefault("match.area_tolerance", 0.90)
	v.SetDefault("match.layout_points", 20)
	v.SetDefault("match.layout_near_points", 8)
	v.SetDefault("match.layout_missing_points", 6)
	v.SetDefault("match.location_points", 10)
	v.SetDefault("match.location_district_points", 5)
	v.SetDefault("match.min_score", 40)
	v.SetDefault("match.top_n", 10)
	v.SetDefault("match.default_radius_km", 20.0)
	v.SetDefault("match.workers", 8)
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LISTMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "listing-match.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "listing-match/1.0")
	v.SetDefault("geocode.min_interval_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.retry_backoff_ms", 500)
	SetMatchDefaults(v)

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

// Validate checks the settings required by the given command mode.
// Modes: "store" (database access), "serve" (store + HTTP).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if c.Match.Workers < 1 || c.Match.Workers > 64 {
		errs = append(errs, "match.workers must be between 1 and 64")
	}
	if c.Geocode.Enabled && c.Geocode.BaseURL == "" {
		errs = append(errs, "geocode.base_url is required when geocoding is enabled")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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

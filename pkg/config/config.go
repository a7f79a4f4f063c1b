// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/aggregate"
)

// DefaultPath is read when PLN_CONFIG is unset.
const DefaultPath = "pln-monitor.toml"

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type APIConfig struct {
	Port            string   `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	RequestTimeout  Duration `toml:"request_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type TopologyConfig struct {
	Driver  string `toml:"driver"` // "postgres" or "memory"
	DSN     string `toml:"dsn"`
	Fixture string `toml:"fixture"` // JSON fixture for the memory driver; empty serves the built-in sample
}

type TelemetryConfig struct {
	Driver string `toml:"driver"` // "postgres", "sqlite" or "memory"
	DSN    string `toml:"dsn"`
}

type CorrelatorConfig struct {
	ChunkSize   int `toml:"chunk_size"`
	Concurrency int `toml:"concurrency"`
}

type CacheConfig struct {
	Backend        string   `toml:"backend"` // "memory" or "redis"
	SystemTTL      Duration `toml:"system_ttl"`
	ScopedTTL      Duration `toml:"scoped_ttl"`
	ComputeTimeout Duration `toml:"compute_timeout"`
	RedisAddr      string   `toml:"redis_addr"`
	RedisPassword  string   `toml:"redis_password"`
	RedisDB        int      `toml:"redis_db"`
	KeyPrefix      string   `toml:"key_prefix"`
}

type AuthConfig struct {
	// JWTSecret enables bearer token checks. Empty trusts OrganizationHeader from the gateway.
	JWTSecret          string `toml:"jwt_secret"`
	OrganizationHeader string `toml:"organization_header"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type RegionsConfig struct {
	Correction aggregate.Corrections `toml:"correction"`
}

// Config is the whole service configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Topology   TopologyConfig   `toml:"topology"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Correlator CorrelatorConfig `toml:"correlator"`
	Cache      CacheConfig      `toml:"cache"`
	Auth       AuthConfig       `toml:"auth"`
	Log        LogConfig        `toml:"log"`
	Regions    RegionsConfig    `toml:"regions"`
}

// Default returns a configuration that runs against the built-in sample data.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Port:            "8080",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			RequestTimeout:  Duration{60 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Topology:   TopologyConfig{Driver: "memory"},
		Telemetry:  TelemetryConfig{Driver: "memory"},
		Correlator: CorrelatorConfig{ChunkSize: 100, Concurrency: 4},
		Cache: CacheConfig{
			Backend:        "memory",
			SystemTTL:      Duration{30 * time.Second},
			ScopedTTL:      Duration{5 * time.Minute},
			ComputeTimeout: Duration{45 * time.Second},
			RedisAddr:      "localhost:6379",
			KeyPrefix:      "pln:",
		},
		Auth: AuthConfig{OrganizationHeader: "X-Organization-Id"},
		Log:  LogConfig{Level: "info", Format: "text"},
		Regions: RegionsConfig{Correction: aggregate.Corrections{
			{Token: "MAKASSAR", LineKV: 20, PowerFactor: 0.85},
			{Token: "KENDARI", LineKV: 21, PowerFactor: 0.9},
		}},
	}
}

// Load reads path over the defaults, then applies environment overrides and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		// A correction table in the file replaces the default one instead of overlaying it.
		defaults := cfg.Regions.Correction
		cfg.Regions.Correction = nil
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
		if !md.IsDefined("regions", "correction") {
			cfg.Regions.Correction = defaults
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			log.WithField("keys", fmt.Sprint(undecoded)).Warn("unknown configuration keys ignored")
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file location.
func Path() string {
	return getEnv("PLN_CONFIG", DefaultPath)
}

func (c *Config) applyEnv() error {
	c.API.Port = getEnv("API_PORT", c.API.Port)
	c.Topology.DSN = getEnv("TOPOLOGY_DSN", c.Topology.DSN)
	if c.Topology.DSN != "" && os.Getenv("TOPOLOGY_DRIVER") == "" && c.Topology.Driver == "memory" {
		c.Topology.Driver = "postgres"
	}
	c.Topology.Driver = getEnv("TOPOLOGY_DRIVER", c.Topology.Driver)
	c.Telemetry.Driver = getEnv("TELEMETRY_DRIVER", c.Telemetry.Driver)
	c.Telemetry.DSN = getEnv("TELEMETRY_DSN", c.Telemetry.DSN)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	if v, ok := os.LookupEnv("CORRELATOR_CHUNK_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CORRELATOR_CHUNK_SIZE: %w", err)
		}
		c.Correlator.ChunkSize = n
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Topology.Driver {
	case "memory":
	case "postgres":
		if c.Topology.DSN == "" {
			errs = append(errs, errors.New("topology.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown topology.driver %q", c.Topology.Driver))
	}
	switch c.Telemetry.Driver {
	case "memory":
		if c.Topology.Driver != "memory" {
			errs = append(errs, errors.New("telemetry.driver memory requires topology.driver memory"))
		}
	case "postgres", "sqlite":
		if c.Telemetry.DSN == "" {
			errs = append(errs, fmt.Errorf("telemetry.dsn is required for the %s driver", c.Telemetry.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry.driver %q", c.Telemetry.Driver))
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}
	if c.Cache.SystemTTL.Duration <= 0 || c.Cache.ScopedTTL.Duration <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Correlator.ChunkSize <= 0 {
		errs = append(errs, errors.New("correlator.chunk_size must be positive"))
	}
	for i, corr := range c.Regions.Correction {
		if corr.Token == "" || corr.LineKV <= 0 || corr.PowerFactor <= 0 || corr.PowerFactor > 1 {
			errs = append(errs, fmt.Errorf("regions.correction[%d] needs a token, line_kv > 0 and 0 < power_factor <= 1", i))
		}
	}
	return errors.Join(errs...)
}

// getEnv retrieves environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

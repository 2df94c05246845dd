package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/failwatch/pkg/hostname"
	"github.com/cuemby/failwatch/pkg/reconcile"
	"github.com/cuemby/failwatch/pkg/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FAILWATCH_LEDGER_MAX_RECORDS
const EnvPrefix = "FAILWATCH"

// Config stores all configuration for failwatch
type Config struct {
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Debounce   DebounceConfig   `mapstructure:"debounce"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	API        APIConfig        `mapstructure:"api"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LedgerConfig struct {
	MaxRecords int `mapstructure:"max_records"`
}

type DebounceConfig struct {
	Window        time.Duration `mapstructure:"window"`
	MaxEntries    int           `mapstructure:"max_entries"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type NormalizerConfig struct {
	Ignore            []string `mapstructure:"ignore"`
	FoldToRegistrable bool     `mapstructure:"fold_to_registrable"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Key      string         `mapstructure:"key"`
	Bolt     BoltConfig     `mapstructure:"bolt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type ProxyConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Mode           string        `mapstructure:"mode"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`

	// HealthInterval is how often the endpoint is probed; 0 disables probing
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	GRPCHealthAddr string   `mapstructure:"grpc_health_addr"`
	IngestRate     float64  `mapstructure:"ingest_rate"`
	IngestBurst    int      `mapstructure:"ingest_burst"`
	WatchOrigins   []string `mapstructure:"watch_origins"`
}

// FeedConfig selects the event sources started by serve in addition to
// HTTP ingest
type FeedConfig struct {
	Files        []string `mapstructure:"files"`
	Stdin        bool     `mapstructure:"stdin"`
	RedisAddr    string   `mapstructure:"redis_addr"`
	RedisChannel string   `mapstructure:"redis_channel"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// SetDefaults registers every key with its default so environment
// overrides apply to all of them
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ledger.max_records", 200)

	v.SetDefault("debounce.window", 4*time.Second)
	v.SetDefault("debounce.max_entries", 800)
	v.SetDefault("debounce.sweep_interval", 30*time.Second)

	v.SetDefault("normalizer.ignore", hostname.DefaultIgnore)
	v.SetDefault("normalizer.fold_to_registrable", false)

	v.SetDefault("storage.driver", string(storage.DriverBolt))
	v.SetDefault("storage.key", "failedHosts")
	v.SetDefault("storage.bolt.path", "./failwatch.db")
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "failwatch:")
	v.SetDefault("storage.postgres.url", "")

	v.SetDefault("proxy.endpoint", reconcile.DefaultEndpoint)
	v.SetDefault("proxy.mode", string(reconcile.ModeSingle))
	v.SetDefault("proxy.timeout", 10*time.Second)
	v.SetDefault("proxy.max_concurrency", 0)
	v.SetDefault("proxy.health_interval", 30*time.Second)

	v.SetDefault("api.addr", ":9098")
	v.SetDefault("api.grpc_health_addr", "")
	v.SetDefault("api.ingest_rate", 50.0)
	v.SetDefault("api.ingest_burst", 100)
	v.SetDefault("api.watch_origins", []string{})

	v.SetDefault("feed.files", []string{})
	v.SetDefault("feed.stdin", false)
	v.SetDefault("feed.redis_addr", "")
	v.SetDefault("feed.redis_channel", "failwatch:events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("metrics.heartbeat_interval", 30*time.Second)
}

// New returns a viper instance with defaults and environment overrides
// configured
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates a configured viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	var errs []error

	if c.Ledger.MaxRecords <= 0 {
		errs = append(errs, fmt.Errorf("ledger.max_records must be positive, got %d", c.Ledger.MaxRecords))
	}
	if c.Debounce.Window < 0 {
		errs = append(errs, fmt.Errorf("debounce.window must not be negative, got %s", c.Debounce.Window))
	}

	switch storage.Driver(c.Storage.Driver) {
	case storage.DriverBolt, storage.DriverRedis, storage.DriverMemory:
	case storage.DriverPostgres:
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("storage.postgres.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Key == "" {
		errs = append(errs, errors.New("storage.key must not be empty"))
	}

	switch reconcile.Mode(c.Proxy.Mode) {
	case reconcile.ModeSingle, reconcile.ModeBatch:
	default:
		errs = append(errs, fmt.Errorf("unknown proxy.mode %q", c.Proxy.Mode))
	}
	if c.Proxy.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("proxy.max_concurrency must not be negative, got %d", c.Proxy.MaxConcurrency))
	}

	return errors.Join(errs...)
}

// StoreConfig maps storage settings onto storage.Config
func (c *Config) StoreConfig() storage.Config {
	return storage.Config{
		Driver:        storage.Driver(c.Storage.Driver),
		BoltPath:      c.Storage.Bolt.Path,
		RedisAddr:     c.Storage.Redis.Addr,
		RedisPassword: c.Storage.Redis.Password,
		RedisDB:       c.Storage.Redis.DB,
		RedisPrefix:   c.Storage.Redis.Prefix,
		PostgresURL:   c.Storage.Postgres.URL,
	}
}

// NormalizerPolicy maps normalizer settings onto hostname.Policy
func (c *Config) NormalizerPolicy() hostname.Policy {
	ignore := make([]string, len(c.Normalizer.Ignore))
	copy(ignore, c.Normalizer.Ignore)
	return hostname.Policy{
		Ignore:            ignore,
		FoldToRegistrable: c.Normalizer.FoldToRegistrable,
	}
}

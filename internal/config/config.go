package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// BackendConfig covers the resolved backend endpoint and the retry and
// refresh behavior around it.
type BackendConfig struct {
	// Endpoint is an explicit endpoint override; when empty, the resolver
	// falls back to the host environment hint and well-known addresses.
	Endpoint string `mapstructure:"endpoint"`

	// HostEnv names the environment variable consulted for a backend host
	// hint.
	HostEnv string `mapstructure:"host_env"`

	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`

	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ResolveAttempts  int           `mapstructure:"resolve_attempts"`
}

type CacheConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	TTL            time.Duration `mapstructure:"ttl"`
	CapacityMB     int64         `mapstructure:"capacity_mb"`
	MaxEntries     int           `mapstructure:"max_entries"`
	StaleGrace     time.Duration `mapstructure:"stale_grace"`
	MaxEntrySizeMB int64         `mapstructure:"max_entry_size_mb"`
}

type AuthConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Users   []UserAuth `mapstructure:"users"`
}

type UserAuth struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SentryConfig struct {
	Dsn     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "/etc/certs/tls.crt")
	v.SetDefault("server.tls.key_file", "/etc/certs/tls.key")

	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.host_env", "STORAGE_HOST")
	v.SetDefault("backend.bucket", "blobs")
	v.SetDefault("backend.refresh_interval", "60s")
	v.SetDefault("backend.operation_timeout", "30s")
	v.SetDefault("backend.max_retries", 5)
	v.SetDefault("backend.backoff_base", "200ms")
	v.SetDefault("backend.backoff_cap", "3s")
	v.SetDefault("backend.probe_timeout", "1s")
	v.SetDefault("backend.resolve_attempts", 3)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.capacity_mb", 256)
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.stale_grace", "0s")
	v.SetDefault("cache.max_entry_size_mb", 100)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("sentry.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	v.BindEnv("backend.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("backend.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("sentry.dsn", "SENTRY_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backend.AccessKey == "" {
		return fmt.Errorf("backend.access_key is required")
	}
	if c.Backend.SecretKey == "" {
		return fmt.Errorf("backend.secret_key is required")
	}
	if c.Backend.Bucket == "" {
		return fmt.Errorf("backend.bucket is required")
	}
	if c.Backend.MaxRetries < 1 {
		return fmt.Errorf("backend.max_retries must be at least 1")
	}
	if c.Cache.Enabled && c.Cache.CapacityMB <= 0 {
		return fmt.Errorf("cache.capacity_mb must be positive when the cache is enabled")
	}
	if c.Auth.Enabled && len(c.Auth.Users) == 0 {
		return fmt.Errorf("auth.users is required when auth is enabled")
	}
	for i, user := range c.Auth.Users {
		if user.Username == "" {
			return fmt.Errorf("auth.users[%d].username is required", i)
		}
		if user.Password == "" {
			return fmt.Errorf("auth.users[%d].password is required", i)
		}
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	return nil
}

func (c *Config) CacheCapacityBytes() int64 {
	return c.Cache.CapacityMB * 1024 * 1024
}

func (c *Config) MaxEntrySizeBytes() int64 {
	return c.Cache.MaxEntrySizeMB * 1024 * 1024
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_DATABASE_URL
const EnvPrefix = "CATALOG"

// Config represents the catalog configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	RDF        RDFConfig        `mapstructure:"rdf"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Webservice WebserviceConfig `mapstructure:"webservice"`
	Log        LogConfig        `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	Driver       string `mapstructure:"driver"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	Host            string          `mapstructure:"host"`
	AdminEnabled    bool            `mapstructure:"admin_enabled"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	// CORSOrigins enables CORS for the listed origins ("*" for any)
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	Profiling       bool            `mapstructure:"profiling"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles /layers per client. Zero requests disables it.
// Clients are keyed by connection address; X-Forwarded-For is only read
// from TrustedProxies (CIDR blocks or single IPs).
type RateLimitConfig struct {
	Requests       int           `mapstructure:"requests"`
	Window         time.Duration `mapstructure:"window"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// RDFConfig holds the base of every emitted IRI
type RDFConfig struct {
	BaseURI string `mapstructure:"base_uri"`
	EPCode  string `mapstructure:"ep_code"`
}

// CacheConfig selects and configures the registry cache backend
type CacheConfig struct {
	Backend string      `mapstructure:"backend"`
	Prefix  string      `mapstructure:"prefix"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig represents the redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WebserviceConfig configures outbound webservice fetches
type WebserviceConfig struct {
	// TimeoutMS is the fetch timeout for layers without an update rate
	TimeoutMS int `mapstructure:"timeout_ms"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataTimeout returns the default webservice timeout
func (w WebserviceConfig) DataTimeout() time.Duration {
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.admin_enabled", false)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.profiling", false)
	v.SetDefault("server.rate_limit.requests", 0)
	v.SetDefault("server.rate_limit.window", time.Minute)

	v.SetDefault("rdf.base_uri", "http://rdf.citysdk.eu/")
	v.SetDefault("rdf.ep_code", "ams")

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.prefix", "catalog:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("webservice.timeout_ms", 3000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load loads the configuration from path, or from catalog.yml or
// catalog.yaml in the working directory when path is empty
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment overrides: CATALOG_SERVER_PORT, CATALOG_CACHE_REDIS_ADDR, ...
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}

	if cfg.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rate_limit.requests must not be negative, got: %d", cfg.Server.RateLimit.Requests)
	}
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive when rate limiting is enabled")
	}

	if !strings.HasSuffix(cfg.RDF.BaseURI, "/") {
		return fmt.Errorf("rdf.base_uri must end with '/', got: %s", cfg.RDF.BaseURI)
	}
	if cfg.RDF.EPCode == "" || strings.Contains(cfg.RDF.EPCode, "/") {
		return fmt.Errorf("rdf.ep_code must be a non-empty path segment, got: %q", cfg.RDF.EPCode)
	}

	switch cfg.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got: %s", CacheMemory, CacheRedis, cfg.Cache.Backend)
	}

	if cfg.Webservice.TimeoutMS <= 0 {
		return fmt.Errorf("webservice.timeout_ms must be positive, got: %d", cfg.Webservice.TimeoutMS)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	StorageDriverS3     = "s3"
	StorageDriverMinio  = "minio"
	StorageDriverMemory = "memory"
)

// Database drivers
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMemory   = "memory"
)

const (
	defaultPort           = 8080
	defaultURLLifetime    = 4 * time.Hour
	defaultURLCacheTTL    = time.Hour
	defaultAssemblyFanOut = 8
	defaultMaxUploadBytes = 32 << 20
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	JWT      JWTConfig      `yaml:"jwt"`
	Images   ImagesConfig   `yaml:"images"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	AssemblyFanOut int    `yaml:"assembly_fan_out"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Driver      string        `yaml:"driver"`
	Region      string        `yaml:"region"`
	Bucket      string        `yaml:"bucket"`
	AccessKey   string        `yaml:"access_key"`
	SecretKey   string        `yaml:"secret_key"`
	Endpoint    string        `yaml:"endpoint"`
	UseSSL      bool          `yaml:"use_ssl"`
	URLLifetime time.Duration `yaml:"url_lifetime"`
}

// CacheConfig holds signed URL cache configuration. An empty RedisAddr
// selects the in-process cache.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	URLTTL        time.Duration `yaml:"url_ttl"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// ImagesConfig holds image normalization configuration
type ImagesConfig struct {
	MaxDimension uint `yaml:"max_dimension"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// ConfigurationError is a startup-time fatal: the process must not serve
// traffic with a configuration that produced one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Load reads configuration from a YAML file, applies environment overrides
// and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEMORYLAND_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MEMORYLAND_STORAGE_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MEMORYLAND_STORAGE_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MEMORYLAND_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("MEMORYLAND_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("MEMORYLAND_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("MEMORYLAND_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Server.AssemblyFanOut <= 0 {
		c.Server.AssemblyFanOut = defaultAssemblyFanOut
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DatabaseDriverPostgres
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverS3
	}
	if c.Storage.URLLifetime <= 0 {
		c.Storage.URLLifetime = defaultURLLifetime
	}
	if c.Cache.URLTTL <= 0 {
		c.Cache.URLTTL = defaultURLCacheTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks everything the server needs before it starts serving.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return &ConfigurationError{Field: "jwt.secret", Reason: "is required"}
	}
	switch c.Database.Driver {
	case DatabaseDriverPostgres, DatabaseDriverMemory:
	default:
		return &ConfigurationError{Field: "database.driver", Reason: fmt.Sprintf("unknown driver %q", c.Database.Driver)}
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Cache.URLTTL >= c.Storage.URLLifetime {
		return &ConfigurationError{Field: "cache.url_ttl", Reason: "must be shorter than storage.url_lifetime"}
	}
	return nil
}

// Validate checks that the selected storage driver has the credentials it
// needs.
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case StorageDriverMemory:
		return nil
	case StorageDriverS3, StorageDriverMinio:
	default:
		return &ConfigurationError{Field: "storage.driver", Reason: fmt.Sprintf("unknown driver %q", s.Driver)}
	}
	if s.Bucket == "" {
		return &ConfigurationError{Field: "storage.bucket", Reason: "is required"}
	}
	if s.AccessKey == "" || s.SecretKey == "" {
		return &ConfigurationError{Field: "storage.access_key/secret_key", Reason: "both credentials are required"}
	}
	if strings.ContainsAny(s.AccessKey, " \t\n") || strings.ContainsAny(s.SecretKey, " \t\n") {
		return &ConfigurationError{Field: "storage.access_key/secret_key", Reason: "credentials contain whitespace"}
	}
	if s.Driver == StorageDriverMinio && s.Endpoint == "" {
		return &ConfigurationError{Field: "storage.endpoint", Reason: "is required for minio"}
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

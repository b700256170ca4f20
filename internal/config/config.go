package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config is the process-wide configuration. It is loaded once at startup
// and never mutated afterwards.
type Config struct {
	ServiceName string         `toml:"service_name"`
	Env         string         `toml:"env"`
	Server      ServerConfig   `toml:"server"`
	Database    DatabaseConfig `toml:"database"`
	Auth        AuthConfig     `toml:"auth"`
	Redis       RedisConfig    `toml:"redis"`
	Minio       MinioConfig    `toml:"minio"`
	Jobs        JobsConfig     `toml:"jobs"`
	Log         LogConfig      `toml:"log"`

	generatedSecret bool
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port int `toml:"port"`
}

// DatabaseConfig contains the storage connection settings
type DatabaseConfig struct {
	URL            string   `toml:"url"`
	MaxConns       int32    `toml:"max_conns"`
	MinConns       int32    `toml:"min_conns"`
	StorageTimeout Duration `toml:"storage_timeout"`
}

// AuthConfig contains signing and hashing settings
type AuthConfig struct {
	JWTSecret                string `toml:"jwt_secret"`
	JWTAlgorithm             string `toml:"jwt_algorithm"`
	AccessTokenExpireMinutes int    `toml:"access_token_expire_minutes"`
	BcryptCost               int    `toml:"bcrypt_cost"`
}

// RedisConfig contains cache settings
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL Duration `toml:"cache_ttl"`
}

// MinioConfig contains object storage settings. An empty endpoint disables
// the blob namespace of partitions.
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
}

// JobsConfig contains reconciliation settings
type JobsConfig struct {
	ReconcileInterval Duration `toml:"reconcile_interval"`
	OrphanGracePeriod Duration `toml:"orphan_grace_period"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration lets TOML files carry values such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// CredentialConfig is the immutable hashing configuration.
type CredentialConfig struct {
	Cost int
}

// TokenConfig is the immutable signing configuration.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		ServiceName: "orgmanager",
		Env:         "development",
		Server:      ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			MaxConns:       20,
			MinConns:       2,
			StorageTimeout: Duration{5 * time.Second},
		},
		Auth: AuthConfig{
			JWTAlgorithm:             "HS256",
			AccessTokenExpireMinutes: 30,
			BcryptCost:               bcrypt.DefaultCost,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			CacheTTL: Duration{5 * time.Minute},
		},
		Minio: MinioConfig{
			Bucket: "tenant-partitions",
		},
		Jobs: JobsConfig{
			ReconcileInterval: Duration{10 * time.Minute},
			OrphanGracePeriod: Duration{15 * time.Minute},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from the optional TOML file at path, an
// optional .env file and the process environment, in increasing priority.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	cfg.applyEnv()

	if cfg.Auth.JWTSecret == "" && cfg.Env != "production" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.JWTSecret = secret
		cfg.generatedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = getEnv("APP_ENV", c.Env)
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(c.Database.MinConns)))
	c.Database.StorageTimeout.Duration = getEnvAsDuration("STORAGE_TIMEOUT", c.Database.StorageTimeout.Duration)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTAlgorithm = getEnv("JWT_ALGORITHM", c.Auth.JWTAlgorithm)
	c.Auth.AccessTokenExpireMinutes = getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", c.Auth.AccessTokenExpireMinutes)
	c.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", c.Auth.BcryptCost)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.CacheTTL.Duration = getEnvAsDuration("CACHE_TTL", c.Redis.CacheTTL.Duration)

	c.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Minio.Endpoint)
	c.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Minio.AccessKey)
	c.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Minio.SecretKey)
	c.Minio.UseSSL = getEnv("MINIO_USE_SSL", strconv.FormatBool(c.Minio.UseSSL)) == "true"
	c.Minio.Bucket = getEnv("MINIO_BUCKET", c.Minio.Bucket)

	c.Jobs.ReconcileInterval.Duration = getEnvAsDuration("RECONCILE_INTERVAL", c.Jobs.ReconcileInterval.Duration)
	c.Jobs.OrphanGracePeriod.Duration = getEnvAsDuration("ORPHAN_GRACE_PERIOD", c.Jobs.OrphanGracePeriod.Duration)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if !supportedAlgorithms[c.Auth.JWTAlgorithm] {
		return fmt.Errorf("unsupported JWT algorithm %q", c.Auth.JWTAlgorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Database.StorageTimeout.Duration <= 0 {
		return errors.New("STORAGE_TIMEOUT must be positive")
	}
	if c.Env == "production" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes in production")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// Credentials returns the hashing configuration.
func (c *Config) Credentials() CredentialConfig {
	return CredentialConfig{Cost: c.Auth.BcryptCost}
}

// Tokens returns the signing configuration.
func (c *Config) Tokens() TokenConfig {
	return TokenConfig{
		Secret:    []byte(c.Auth.JWTSecret),
		Algorithm: c.Auth.JWTAlgorithm,
		TTL:       time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute,
	}
}

// GeneratedSecret reports whether the JWT secret was generated for this run.
func (c *Config) GeneratedSecret() bool {
	return c.generatedSecret
}

// LogFields returns the configuration as loggable fields. Secrets and the
// connection string are left out.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Env),
		zap.Int("port", c.Server.Port),
		zap.String("jwt_algorithm", c.Auth.JWTAlgorithm),
		zap.Int("token_ttl_minutes", c.Auth.AccessTokenExpireMinutes),
		zap.Duration("storage_timeout", c.Database.StorageTimeout.Duration),
		zap.String("redis_addr", c.Redis.Addr),
		zap.Bool("blob_storage", c.Minio.Endpoint != ""),
		zap.Duration("reconcile_interval", c.Jobs.ReconcileInterval.Duration),
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

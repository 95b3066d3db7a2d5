package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	JWT        JWTConfig        `yaml:"jwt"`
	Generation GenerationConfig `yaml:"generation"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Mode         string `yaml:"mode"` // development | production
	AllowOrigins string `yaml:"allow_origins"`
}

// DatabaseConfig selects the gorm dialector and pool sizes
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql | postgres | sqlite
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	LogLevel        string `yaml:"log_level"`         // silent | error | warn | info
}

// RedisConfig backs the cache, the distributed lock and websocket fan-out
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// GenerationConfig configures the generation clients and their rate limit
type GenerationConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	TextModel   string        `yaml:"text_model"`
	ImageModel  string        `yaml:"image_model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	// RatePerMinute caps generate/extend/rewrite calls per user; 0 disables
	RatePerMinute int `yaml:"rate_per_minute"`
}

type RewriteConfig struct {
	MinSelectionChars int           `yaml:"min_selection_chars"`
	HighlightDuration time.Duration `yaml:"highlight_duration"`
}

type WorkflowConfig struct {
	AllowSelfReview bool          `yaml:"allow_self_review"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	ScheduleCron    string        `yaml:"schedule_cron"`
}

// StorageConfig S3-compatible publication archive
type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	CDNURL          string `yaml:"cdn_url"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "development", AllowOrigins: "http://localhost:3000"},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:complyflow.db?_foreign_keys=on",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			LogLevel:        "warn",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		Generation: GenerationConfig{
			BaseURL:     "https://api.openai.com/v1",
			TextModel:   "gpt-4o",
			ImageModel:  "gpt-4o",
			Timeout:     90 * time.Second,
			MaxTokens:   4096,
			Temperature:   0.7,
			RatePerMinute: 20,
		},
		Rewrite: RewriteConfig{MinSelectionChars: 5, HighlightDuration: 4500 * time.Millisecond},
		Workflow: WorkflowConfig{
			LockTTL:      2 * time.Minute,
			ScheduleCron: "@every 1m",
		},
		Storage: StorageConfig{Region: "us-east-1", BasePath: "publications"},
	}
}

// Load reads a YAML file over the defaults, expands ${VAR} references and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Mode, "SERVER_MODE")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.AllowOrigins, "CORS_ALLOW_ORIGINS")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "DB_DSN")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Generation.BaseURL, "AI_BASE_URL")
	setString(&cfg.Generation.APIKey, "AI_API_KEY")
	setString(&cfg.Generation.TextModel, "AI_TEXT_MODEL")
	setString(&cfg.Generation.ImageModel, "AI_IMAGE_MODEL")
	setInt(&cfg.Generation.RatePerMinute, "AI_RATE_PER_MINUTE")

	setBool(&cfg.Workflow.AllowSelfReview, "WORKFLOW_ALLOW_SELF_REVIEW")

	setBool(&cfg.Storage.Enabled, "STORAGE_ENABLED")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want mysql, postgres or sqlite", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port %d is invalid", c.Server.Port))
	}
	if !c.IsDevelopment() && c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required outside development"))
	}
	if c.Rewrite.MinSelectionChars < 1 {
		errs = append(errs, errors.New("rewrite.min_selection_chars must be positive"))
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required when storage is enabled"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the server runs in a local/dev mode
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Server.Mode) {
	case "", "development", "dev", "local":
		return true
	}
	return false
}

// LogResolved logs the effective configuration without secrets
func LogResolved(c *Config) {
	pkglogger.GetLogger().Info().
		Int("port", c.Server.Port).
		Str("mode", c.Server.Mode).
		Str("db_driver", c.Database.Driver).
		Bool("redis", c.Redis.Enabled).
		Str("redis_addr", fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)).
		Str("ai_base_url", c.Generation.BaseURL).
		Str("text_model", c.Generation.TextModel).
		Bool("ai_key_set", c.Generation.APIKey != "").
		Bool("jwt_secret_set", c.JWT.Secret != "").
		Bool("storage", c.Storage.Enabled).
		Bool("allow_self_review", c.Workflow.AllowSelfReview).
		Msg("config resolved")
}

// Package config loads flex settings from built-in defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flexfitness/flex-cli/internal/app"
	"github.com/flexfitness/flex-cli/internal/provider/apininjas"
	"github.com/flexfitness/flex-cli/internal/provider/freeexercisedb"
	"github.com/flexfitness/flex-cli/internal/service"
)

const (
	defaultHTTPTimeout     = 20 * time.Second
	defaultDownloadWorkers = 4
	defaultLockTTL         = 15 * time.Minute

	// EnvFileVar names an explicit .env file. When unset, ./.env is used if present.
	EnvFileVar = "FLEX_ENV_FILE"
)

type Config struct {
	DBPath             string             `yaml:"db" env:"FLEX_DB"`
	DatasetURL         string             `yaml:"dataset_url" env:"FLEX_DATASET_URL"`
	ImageBaseURL       string             `yaml:"image_base_url" env:"FLEX_IMAGE_BASE_URL"`
	ImageDir           string             `yaml:"image_dir" env:"FLEX_IMAGE_DIR"`
	HTTPTimeout        time.Duration      `yaml:"http_timeout" env:"FLEX_HTTP_TIMEOUT"`
	DownloadWorkers    int                `yaml:"download_workers" env:"FLEX_DOWNLOAD_WORKERS"`
	DownloadsPerSecond float64            `yaml:"downloads_per_second" env:"FLEX_DOWNLOADS_PER_SECOND"`
	LockTTL            time.Duration      `yaml:"lock_ttl" env:"FLEX_LOCK_TTL"`
	APINinjasKey       string             `yaml:"api_ninjas_key" env:"API_NINJAS_KEY"`
	APINinjasBaseURL   string             `yaml:"api_ninjas_base_url" env:"FLEX_API_NINJAS_BASE_URL"`
	LogLevel           string             `yaml:"log_level" env:"FLEX_LOG_LEVEL"`
	Units              map[string]float64 `yaml:"units"`
}

// Default returns the built-in configuration. Paths that depend on the user
// config dir are left empty when it cannot be resolved.
func Default() Config {
	cfg := Config{
		DatasetURL:       freeexercisedb.DefaultDatasetURL,
		ImageBaseURL:     freeexercisedb.DefaultImageBaseURL,
		HTTPTimeout:      defaultHTTPTimeout,
		DownloadWorkers:  defaultDownloadWorkers,
		LockTTL:          defaultLockTTL,
		APINinjasBaseURL: apininjas.DefaultBaseURL,
	}
	if p, err := app.DefaultDBPath(); err == nil {
		cfg.DBPath = p
	}
	if p, err := app.DefaultImageDir(); err == nil {
		cfg.ImageDir = p
	}
	return cfg
}

// Load layers the YAML file at path (skipped when empty or missing), the .env
// file and the environment over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotEnv() error {
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("load env file %s: %w", explicit, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

// UnitTable returns the default unit table with configured overrides applied.
func (c Config) UnitTable() service.UnitTable {
	return service.DefaultUnitTable().Merge(c.Units)
}

func (c Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be > 0")
	}
	if c.DownloadWorkers < 1 {
		return fmt.Errorf("download_workers must be >= 1")
	}
	if c.DownloadsPerSecond < 0 {
		return fmt.Errorf("downloads_per_second must be >= 0")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be > 0")
	}
	if strings.TrimSpace(c.DatasetURL) == "" {
		return fmt.Errorf("dataset_url is required")
	}
	if err := c.UnitTable().Validate(); err != nil {
		return fmt.Errorf("units: %w", err)
	}
	return nil
}

// Package config loads finstat settings from a YAML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Environment overrides.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvCacheDir    = "FINSTAT_CACHE_DIR"
	EnvUserAgent   = "FINSTAT_USER_AGENT"
	EnvLogLevel    = "FINSTAT_LOG_LEVEL"
)

// Config is the full application configuration.
type Config struct {
	DatabaseURL string         `yaml:"database_url"`
	Log         LogConfig      `yaml:"log"`
	EDGAR       EDGARConfig    `yaml:"edgar"`
	Server      ServerConfig   `yaml:"server"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type EDGARConfig struct {
	UserAgent         string        `yaml:"user_agent"`
	CacheDir          string        `yaml:"cache_dir"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PipelineConfig struct {
	Concurrency int `yaml:"concurrency"`
	IndexCount  int `yaml:"index_count"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		EDGAR: EDGARConfig{
			CacheDir:          ".cache/edgar",
			RequestsPerSecond: 10,
			MaxRetries:        10,
			Timeout:           30 * time.Second,
		},
		Server:   ServerConfig{Addr: ":8080"},
		Pipeline: PipelineConfig{Concurrency: 4, IndexCount: 40},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing path is not an error; an empty path skips the file. A .env
// file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.EDGAR.CacheDir = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.EDGAR.UserAgent = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FINSTAT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FINSTAT_CONCURRENCY %q: %w", v, err)
		}
		c.Pipeline.Concurrency = n
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Env string `yaml:"env"` // development|production

	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Workers struct {
		Count        int      `yaml:"count"` // concurrent jobs per process
		PollInterval Duration `yaml:"poll_interval"`
	} `yaml:"workers"`

	Queue struct {
		MaxAttempts        int      `yaml:"max_attempts"`
		RetryBackoff       Duration `yaml:"retry_backoff"`      // base for exponential backoff
		VisibilityTimeout  Duration `yaml:"visibility_timeout"` // running claims older than this are reclaimed
		CompletedRetention Duration `yaml:"completed_retention"`
		DeadRetention      Duration `yaml:"dead_retention"`
		PruneInterval      Duration `yaml:"prune_interval"`
	} `yaml:"queue"`

	Admission struct {
		DuplicateWindow   Duration `yaml:"duplicate_window"`
		DefaultDailyLimit int      `yaml:"default_daily_limit"`
	} `yaml:"admission"`

	Scan struct {
		ProbeTimeout Duration `yaml:"probe_timeout"`
		ExposurePace Duration `yaml:"exposure_pace"`
		UserAgent    string   `yaml:"user_agent"`
	} `yaml:"scan"`

	Plan struct {
		BaseURL string `yaml:"base_url"` // empty selects the static adapter
		APIKey  string `yaml:"api_key"`
	} `yaml:"plan"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refill_rate"` // tokens per second
	} `yaml:"rate_limit"`
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides and defaults. With no file present, environment plus defaults
// alone produce a runnable configuration.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// config file optional
		default:
			return nil, err
		}
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.Count = n
		}
	}

	if cfg.Database.URL == "" {
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// Production reports whether network-target policy should be enforced.
func (c *Config) Production() bool { return c.Env == "production" }

func defaults() *Config {
	cfg := &Config{Env: "development"}
	cfg.Server.Addr = ":8080"
	cfg.Workers.Count = 2
	cfg.Workers.PollInterval = Duration(500 * time.Millisecond)
	cfg.Queue.MaxAttempts = 3
	cfg.Queue.RetryBackoff = Duration(2 * time.Second)
	cfg.Queue.VisibilityTimeout = Duration(10 * time.Minute)
	cfg.Queue.CompletedRetention = Duration(24 * time.Hour)
	cfg.Queue.DeadRetention = Duration(7 * 24 * time.Hour)
	cfg.Queue.PruneInterval = Duration(time.Hour)
	cfg.Admission.DuplicateWindow = Duration(5 * time.Minute)
	cfg.Admission.DefaultDailyLimit = 10
	cfg.Scan.ProbeTimeout = Duration(30 * time.Second)
	cfg.Scan.ExposurePace = Duration(250 * time.Millisecond)
	cfg.Scan.UserAgent = "vigil-scanner/1.0"
	cfg.RateLimit.Capacity = 30
	cfg.RateLimit.RefillRate = 1
	return cfg
}

package model

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	ConfigFileName = "config.yml"

	DefaultServerURL    = "http://localhost:8000"
	DefaultPollInterval = 5 * time.Second
	DefaultAuditLimit   = 20
	// requestTimeoutCeiling bounds the derived request timeout from below
	requestTimeoutCeiling = 10 * time.Second
)

type StorelabConfig struct {
	ServerURL      string        `yaml:"server_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	AuditLimit     int           `yaml:"audit_limit"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	OutputFormat   string        `yaml:"output_format"`
	LogLevel       string        `yaml:"log_level"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

type MetricsConfig struct {
	Influx InfluxConfig `yaml:"influx"`
}

type InfluxConfig struct {
	Url    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

func (c InfluxConfig) Enabled() bool {
	return c.Url != ""
}

func DefaultConfig() *StorelabConfig {
	return &StorelabConfig{
		ServerURL:    DefaultServerURL,
		PollInterval: DefaultPollInterval,
		AuditLimit:   DefaultAuditLimit,
		OutputFormat: "table",
		LogLevel:     "info",
	}
}

// EffectiveTimeout is the configured request timeout, or the greater of twice
// the poll interval and a fixed ceiling.
func (c *StorelabConfig) EffectiveTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	if t := 2 * c.PollInterval; t > requestTimeoutCeiling {
		return t
	}
	return requestTimeoutCeiling
}

// ConfigDir returns ~/.storelab
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to locate home directory")
	}
	return filepath.Join(home, ".storelab"), nil
}

// LoadConfig reads path over the defaults; a missing file yields defaults.
// STORELAB_* environment variables are applied last.
func LoadConfig(path string) (*StorelabConfig, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "unable to read config [%s]", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "unable to parse config [%s]", path)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *StorelabConfig) applyEnv() error {
	if v := os.Getenv("STORELAB_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("STORELAB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STORELAB_OUTPUT"); v != "" {
		c.OutputFormat = v
	}
	if v := os.Getenv("STORELAB_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "invalid STORELAB_POLL_INTERVAL")
		}
		c.PollInterval = d
	}
	if v := os.Getenv("STORELAB_AUDIT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid STORELAB_AUDIT_LIMIT")
		}
		c.AuditLimit = n
	}
	if v := os.Getenv("STORELAB_INFLUX_TOKEN"); v != "" {
		c.Metrics.Influx.Token = v
	}
	return nil
}

func (c *StorelabConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url must be set")
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.AuditLimit <= 0 {
		return errors.Errorf("audit_limit must be positive, got %d", c.AuditLimit)
	}
	return nil
}

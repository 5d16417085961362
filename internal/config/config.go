package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the placescout service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Places  PlacesConfig  `yaml:"places"`
	Search  SearchConfig  `yaml:"search"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// PlacesConfig holds the upstream search API settings. The API key is a
// secret and normally arrives via ${PLACES_API_KEY}.
type PlacesConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"` // empty means the real API
	PageSize   int    `yaml:"page_size"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SearchConfig holds aggregation settings.
type SearchConfig struct {
	Divisions int `yaml:"divisions"` // per-axis sub-boxes for deep search
}

// JobsConfig holds job staging and expiry settings.
type JobsConfig struct {
	Dir              string `yaml:"dir"`     // upload + result staging directory
	DBPath           string `yaml:"db_path"` // job registry database
	ResultTTLMin     int    `yaml:"result_ttl_min"`
	SweepIntervalSec int    `yaml:"sweep_interval_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	return LoadFile(filepath.Join("config", env+".yaml"))
}

// LoadFile reads configuration from an explicit path, expanding ${VAR} and
// ${VAR:-default} references from the environment.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Places.PageSize <= 0 {
		c.Places.PageSize = 20
	}
	if c.Places.TimeoutSec <= 0 {
		c.Places.TimeoutSec = 15
	}
	if c.Search.Divisions <= 0 {
		c.Search.Divisions = 3
	}
	if c.Jobs.Dir == "" {
		c.Jobs.Dir = "data/jobs"
	}
	if c.Jobs.DBPath == "" {
		c.Jobs.DBPath = "data/placescout.db"
	}
	if c.Jobs.ResultTTLMin <= 0 {
		c.Jobs.ResultTTLMin = 300
	}
	if c.Jobs.SweepIntervalSec <= 0 {
		c.Jobs.SweepIntervalSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Places.APIKey) == "" {
		return fmt.Errorf("places.api_key is required (set PLACES_API_KEY)")
	}
	if c.Places.PageSize > 20 {
		return fmt.Errorf("places.page_size must not exceed the API ceiling of 20, got %d", c.Places.PageSize)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

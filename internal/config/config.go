// Package config handles reading and writing ~/.intervai/config.yaml and
// layering environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version      int                `yaml:"version"`
	Service      ServiceConfig      `yaml:"service"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Interview    InterviewConfig    `yaml:"interview"`
	Store        StoreConfig        `yaml:"store"`
	Log          LogConfig          `yaml:"log"`
	Demo         DemoConfig         `yaml:"demo"`

	// APIKey is only ever read from the environment or a flag.
	APIKey string `yaml:"-"`
}

// ServiceConfig locates the remote interview service.
type ServiceConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
}

// ConnectivityConfig controls the reachability probe.
type ConnectivityConfig struct {
	ProbeInterval int `yaml:"probe_interval"` // seconds
	ProbeTimeout  int `yaml:"probe_timeout"`  // seconds
}

// InterviewConfig holds the defaults for new sessions.
type InterviewConfig struct {
	Provider          string `yaml:"provider"`
	Domain            string `yaml:"domain"`
	Difficulty        string `yaml:"difficulty"` // basic | medium | hard
	Model             string `yaml:"model"`
	TimeLimit         int    `yaml:"time_limit"` // seconds, 0 = untimed
	StressMode        bool   `yaml:"stress_mode"`
	FollowupThreshold int    `yaml:"followup_threshold"`
}

// StoreConfig selects where session records are kept.
type StoreConfig struct {
	Driver    string `yaml:"driver"` // sqlite | redis
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// RedisPassword is only read from INTERVAI_REDIS_PASSWORD.
	RedisPassword string `yaml:"-"`
}

// LogConfig locates the event log.
type LogConfig struct {
	Path string `yaml:"path"`
}

// DemoConfig configures the local demo service.
type DemoConfig struct {
	Addr string `yaml:"addr"`
}

const (
	configFile = "config.yaml"
	envFile    = ".env"

	MinTimeLimit  = 30
	MaxTimeLimit  = 900
	TimeLimitStep = 30
)

// Providers lists the model providers the service accepts.
var Providers = []string{"openai", "anthropic", "google", "perplexity", "grok", "together_ai"}

// Difficulties lists the accepted difficulty tiers.
var Difficulties = []string{"basic", "medium", "hard"}

var (
	ErrMissingAPIKey = errors.New("API key is required")
	ErrMissingDomain = errors.New("domain/subject is required")
)

// HomeDir returns the directory holding config, database and log. It is
// INTERVAI_HOME when set, otherwise ~/.intervai.
func HomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("INTERVAI_HOME")); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".intervai"), nil
}

// ReadConfig reads config.yaml from dir.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir, creating dir if needed.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Service: ServiceConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: 60,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 5,
			ProbeTimeout:  2,
		},
		Interview: InterviewConfig{
			Provider:          "openai",
			Domain:            "Software Engineering",
			Difficulty:        "basic",
			TimeLimit:         120,
			FollowupThreshold: 7,
		},
		Store: StoreConfig{
			Driver:    "sqlite",
			RedisAddr: "localhost:6379",
		},
		Demo: DemoConfig{
			Addr: ":8000",
		},
	}
}

// Load builds the effective configuration for dir: defaults, then
// config.yaml if present, then .env (never overriding real environment
// variables), then INTERVAI_* environment variables.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
	} else if err != nil {
		return nil, err
	}

	if err := LoadEnvFile(filepath.Join(dir, envFile)); err != nil {
		return nil, err
	}
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillPaths(dir)
	return cfg, nil
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Service.BaseURL, "INTERVAI_BASE_URL")
	setString(&c.APIKey, "INTERVAI_API_KEY")
	setString(&c.Interview.Provider, "INTERVAI_PROVIDER")
	setString(&c.Interview.Domain, "INTERVAI_DOMAIN")
	setString(&c.Interview.Difficulty, "INTERVAI_DIFFICULTY")
	setString(&c.Interview.Model, "INTERVAI_MODEL")
	setString(&c.Store.Driver, "INTERVAI_STORE")
	setString(&c.Store.Path, "INTERVAI_DB")
	setString(&c.Store.RedisAddr, "INTERVAI_REDIS_ADDR")
	setString(&c.Store.RedisPassword, "INTERVAI_REDIS_PASSWORD")
	setString(&c.Log.Path, "INTERVAI_LOG")

	for _, v := range []struct {
		dst *int
		key string
	}{
		{&c.Service.RequestTimeout, "INTERVAI_REQUEST_TIMEOUT"},
		{&c.Interview.TimeLimit, "INTERVAI_TIME_LIMIT"},
		{&c.Store.RedisDB, "INTERVAI_REDIS_DB"},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if raw, ok := lookup("INTERVAI_STRESS_MODE"); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid INTERVAI_STRESS_MODE value: %q", raw)
		}
		c.Interview.StressMode = b
	}
	return nil
}

func (c *Config) fillPaths(dir string) {
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(dir, "intervai.db")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(dir, "log.jsonl")
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %q", key, v)
	}
	*dst = n
	return nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return errors.New("service.base_url must not be empty")
	}
	if !slices.Contains(Difficulties, c.Interview.Difficulty) {
		return fmt.Errorf("unknown difficulty %q (want one of %s)", c.Interview.Difficulty, strings.Join(Difficulties, ", "))
	}
	if c.Interview.TimeLimit < 0 {
		return fmt.Errorf("time_limit must not be negative, got %d", c.Interview.TimeLimit)
	}
	if c.Service.RequestTimeout < 0 || c.Connectivity.ProbeInterval < 0 || c.Connectivity.ProbeTimeout < 0 {
		return errors.New("timeouts and intervals must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite or redis)", c.Store.Driver)
	}
	return nil
}

// RequestTimeoutDuration returns the per-request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.Service.RequestTimeout) * time.Second
}

// ProbeIntervalDuration returns the connectivity probe interval.
func (c *Config) ProbeIntervalDuration() time.Duration {
	if c.Connectivity.ProbeInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Connectivity.ProbeInterval) * time.Second
}

// ProbeTimeoutDuration returns the connectivity probe timeout.
func (c *Config) ProbeTimeoutDuration() time.Duration {
	if c.Connectivity.ProbeTimeout <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Connectivity.ProbeTimeout) * time.Second
}

// ClampTimeLimit snaps a requested per-question limit onto the allowed
// range: 0 stays untimed, anything else is rounded to the nearest step and
// clamped to [MinTimeLimit, MaxTimeLimit].
func ClampTimeLimit(sec int) int {
	if sec <= 0 {
		return 0
	}
	sec = (sec + TimeLimitStep/2) / TimeLimitStep * TimeLimitStep
	return min(max(sec, MinTimeLimit), MaxTimeLimit)
}

// ValidateSetup checks a session setup form before it is sent.
func ValidateSetup(apiKey, provider, domain, difficulty string) error {
	var errs []error
	if strings.TrimSpace(apiKey) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if strings.TrimSpace(domain) == "" {
		errs = append(errs, ErrMissingDomain)
	}
	if !slices.Contains(Providers, provider) {
		errs = append(errs, fmt.Errorf("unknown provider %q (want one of %s)", provider, strings.Join(Providers, ", ")))
	}
	if !slices.Contains(Difficulties, difficulty) {
		errs = append(errs, fmt.Errorf("unknown difficulty %q (want one of %s)", difficulty, strings.Join(Difficulties, ", ")))
	}
	return errors.Join(errs...)
}

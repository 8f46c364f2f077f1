package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/vigil/pkg/console"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and environment are read.
const (
	DefaultInstance    = "default"
	DefaultConsoleHost = "127.0.0.1"
	DefaultRedisPort   = 6379
	DefaultListenAddr  = ":8089"
)

// TracingConfig controls the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output,omitempty"` // File path; empty writes to stdout
}

// Config is the bridge's runtime configuration (vigil.yml + environment).
type Config struct {
	Instance        string         `yaml:"instance"`         // Namespace for the console channels
	ConsoleHost     string         `yaml:"console_host"`     // Host running the operator console's Redis
	RedisPort       int            `yaml:"redis_port"`       // Port on ConsoleHost
	RedisURL        string         `yaml:"redis_url"`        // Overrides ConsoleHost/RedisPort when set
	ListenAddr      string         `yaml:"listen_addr"`      // Action server address
	DecisionTimeout time.Duration  `yaml:"decision_timeout"` // 0 waits for the operator indefinitely
	Correlate       bool           `yaml:"correlate"`        // Send request_id with each alert
	Tokens          console.Tokens `yaml:"tokens"`
	Tracing         TracingConfig  `yaml:"tracing"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Instance:    DefaultInstance,
		ConsoleHost: DefaultConsoleHost,
		RedisPort:   DefaultRedisPort,
		ListenAddr:  DefaultListenAddr,
		Tokens:      console.DefaultTokens(),
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables, and validates it.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = []struct {
	key string
	env string
}{
	{"instance", "VIGIL_INSTANCE_NAME"},
	{"console_host", "VIGIL_CONSOLE_HOST"},
	{"redis_port", "VIGIL_REDIS_PORT"},
	{"redis_url", "REDIS_URL"},
	{"listen_addr", "VIGIL_LISTEN_ADDR"},
	{"decision_timeout", "VIGIL_DECISION_TIMEOUT"},
	{"correlate", "VIGIL_CORRELATE"},
	{"tracing.enabled", "VIGIL_TRACING"},
}

// ApplyEnv overlays environment variables onto c. Empty variables are ignored.
func (c *Config) ApplyEnv() error {
	settings := viper.New()
	for _, b := range envBindings {
		if err := settings.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if !settings.IsSet(key) {
			return "", false
		}
		return settings.GetString(key), true
	}

	if v, ok := lookup("instance"); ok {
		c.Instance = v
	}
	if v, ok := lookup("console_host"); ok {
		c.ConsoleHost = v
	}
	if v, ok := lookup("redis_port"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VIGIL_REDIS_PORT %q: %w", v, err)
		}
		c.RedisPort = port
	}
	if v, ok := lookup("redis_url"); ok {
		c.RedisURL = v
	}
	if v, ok := lookup("listen_addr"); ok {
		c.ListenAddr = v
	}
	if v, ok := lookup("decision_timeout"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid VIGIL_DECISION_TIMEOUT %q: %w", v, err)
		}
		c.DecisionTimeout = d
	}
	if v, ok := lookup("correlate"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VIGIL_CORRELATE %q: %w", v, err)
		}
		c.Correlate = b
	}
	if v, ok := lookup("tracing.enabled"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VIGIL_TRACING %q: %w", v, err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}
	if strings.ContainsAny(c.Instance, ": \t\n*?[]") {
		return fmt.Errorf("invalid instance name %q: must not contain ':', whitespace or glob characters", c.Instance)
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	} else {
		if c.ConsoleHost == "" {
			return fmt.Errorf("console_host is required when redis_url is not set")
		}
		if c.RedisPort < 1 || c.RedisPort > 65535 {
			return fmt.Errorf("redis_port must be between 1 and 65535, got %d", c.RedisPort)
		}
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", c.ListenAddr, err)
	}

	if c.DecisionTimeout < 0 {
		return fmt.Errorf("decision_timeout must be >= 0 (0 = wait indefinitely), got %s", c.DecisionTimeout)
	}

	if err := c.Tokens.Validate(); err != nil {
		return fmt.Errorf("invalid tokens: %w", err)
	}

	return nil
}

// RedisAddress returns the Redis URL the bridge connects to.
func (c *Config) RedisAddress() string {
	if c.RedisURL != "" {
		return c.RedisURL
	}
	return fmt.Sprintf("redis://%s", net.JoinHostPort(c.ConsoleHost, strconv.Itoa(c.RedisPort)))
}

// RedisOptions parses RedisAddress into go-redis options.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.RedisAddress())
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL %q: %w", c.RedisAddress(), err)
	}
	return opts, nil
}

// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/game"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values are resolved in order:
// built-in defaults, then the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// APIKey is sent as the subscription key header to every HTTP collaborator.
	APIKey string `yaml:"api_key"`

	Lobby      BackendConfig `yaml:"lobby"`
	Containers BackendConfig `yaml:"containers"`
	Audit      AuditConfig   `yaml:"audit"`
	Balance    BackendConfig `yaml:"balance"`

	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`

	Game game.Settings `yaml:"game"`
}

// BackendConfig selects an adapter for one external collaborator.
type BackendConfig struct {
	Backend string `yaml:"backend"`
	URL     string `yaml:"url"`
}

type AuditConfig struct {
	Backend string `yaml:"backend"`
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
	Subject string `yaml:"subject"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Required bool          `yaml:"required"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

var validBackends = map[string][]string{
	"lobby":      {"http", "redis"},
	"containers": {"http", "local"},
	"audit":      {"http", "redis", "nats", "none"},
	"balance":    {"http", "postgres", "none"},
}

// Default returns a configuration that runs a self-contained server backed by Redis.
func Default() *Config {
	return &Config{
		Port:       "8080",
		LogLevel:   "info",
		LogFormat:  "text",
		Lobby:      BackendConfig{Backend: "redis"},
		Containers: BackendConfig{Backend: "local"},
		Audit:      AuditConfig{Backend: "none", Queue: "cargo_bids", Subject: "cargo.bids"},
		Balance:    BackendConfig{Backend: "none"},
		Redis:      RedisConfig{Addr: "localhost:6379"},
		NATS:       NATSConfig{URL: "nats://127.0.0.1:4222"},
		Game:       game.DefaultSettings(),
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
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

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.APIKey = getEnv("API_KEY", c.APIKey)

	c.Lobby.Backend = getEnv("LOBBY_BACKEND", c.Lobby.Backend)
	c.Lobby.URL = getEnv("LOBBY_API_URL", c.Lobby.URL)
	c.Containers.Backend = getEnv("CONTAINER_BACKEND", c.Containers.Backend)
	c.Containers.URL = getEnv("CONTAINER_API_URL", c.Containers.URL)
	c.Audit.Backend = getEnv("AUDIT_BACKEND", c.Audit.Backend)
	c.Audit.URL = getEnv("BID_SERVICE_URL", c.Audit.URL)
	c.Audit.Queue = getEnv("AUDIT_QUEUE_NAME", c.Audit.Queue)
	c.Audit.Subject = getEnv("NATS_SUBJECT", c.Audit.Subject)
	c.Balance.Backend = getEnv("BALANCE_BACKEND", c.Balance.Backend)
	c.Balance.URL = getEnv("BALANCE_API_URL", c.Balance.URL)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB, &errs)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Postgres.URL = getEnv("DATABASE_URL", c.Postgres.URL)
	if c.Postgres.URL == "" && os.Getenv("PG_HOST") != "" {
		c.Postgres.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("PG_HOST"),
			getEnv("PG_PORT", "5432"),
			os.Getenv("PG_DATABASE"),
		)
	}

	c.Auth.Required = getEnvBool("AUTH_REQUIRED", c.Auth.Required, &errs)
	if v := os.Getenv("TOKEN_EXPIRE_TIME"); v == "never" || v == "0" {
		c.Auth.TokenTTL = 0
	} else {
		c.Auth.TokenTTL = getEnvDuration("TOKEN_EXPIRE_TIME", c.Auth.TokenTTL, &errs)
	}

	g := &c.Game
	g.DefaultBalance = getEnvInt("DEFAULT_BALANCE", g.DefaultBalance, &errs)
	g.InitialBid = getEnvInt("INITIAL_BID", g.InitialBid, &errs)
	g.DefaultRounds = getEnvInt("DEFAULT_ROUNDS", g.DefaultRounds, &errs)
	g.MaxRounds = getEnvInt("MAX_ROUNDS", g.MaxRounds, &errs)
	g.BiddingWindow = getEnvDuration("BIDDING_WINDOW", g.BiddingWindow, &errs)
	g.BidExtension = getEnvDuration("BID_EXTENSION", g.BidExtension, &errs)
	g.SettleDelay = getEnvDuration("SETTLE_DELAY", g.SettleDelay, &errs)
	g.RevealTimeout = getEnvDuration("REVEAL_TIMEOUT", g.RevealTimeout, &errs)
	g.TeardownDelay = getEnvDuration("TEARDOWN_DELAY", g.TeardownDelay, &errs)
	g.PrefetchParallelism = getEnvInt("PREFETCH_PARALLELISM", g.PrefetchParallelism, &errs)
	g.ExternalTimeout = getEnvDuration("EXTERNAL_TIMEOUT", g.ExternalTimeout, &errs)

	return errors.Join(errs...)
}

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	var errs []error
	check := func(kind, backend string) {
		for _, v := range validBackends[kind] {
			if v == backend {
				return
			}
		}
		errs = append(errs, fmt.Errorf("unknown %s backend %q (want one of %s)", kind, backend, strings.Join(validBackends[kind], ", ")))
	}
	check("lobby", c.Lobby.Backend)
	check("containers", c.Containers.Backend)
	check("audit", c.Audit.Backend)
	check("balance", c.Balance.Backend)

	if c.Lobby.Backend == "http" && c.Lobby.URL == "" {
		errs = append(errs, errors.New("LOBBY_API_URL is required for the http lobby backend"))
	}
	if c.Containers.Backend == "http" && c.Containers.URL == "" {
		errs = append(errs, errors.New("CONTAINER_API_URL is required for the http container backend"))
	}
	if c.Audit.Backend == "http" && c.Audit.URL == "" {
		errs = append(errs, errors.New("BID_SERVICE_URL is required for the http audit backend"))
	}
	if c.Balance.Backend == "http" && c.Balance.URL == "" {
		errs = append(errs, errors.New("BALANCE_API_URL is required for the http balance backend"))
	}
	if c.Balance.Backend == "postgres" && c.Postgres.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL or PG_* variables are required for the postgres balance backend"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any selected backend talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Lobby.Backend == "redis" || c.Audit.Backend == "redis"
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int, errs *[]error) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func getEnvBool(key string, def bool, errs *[]error) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

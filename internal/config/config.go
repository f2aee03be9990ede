// Package config assembles runtime settings from defaults, an optional YAML
// file and the environment (a .env file is loaded first when present).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jdmmit/agente/internal/store"
)

// Config holds every setting the commands need
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	StatePath string          `yaml:"state_path"`

	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	Executive ExecutiveConfig `yaml:"executive"`

	Discord DiscordConfig `yaml:"discord"`
	Email   EmailConfig   `yaml:"email"`
	HTTP    HTTPConfig    `yaml:"http"`

	// EnableDesktopLog routes notifications to the log on hosts without a
	// notification daemon
	EnableDesktopLog bool `yaml:"enable_desktop_log"`

	Debug   bool `yaml:"debug"`
	LogJSON bool `yaml:"log_json"`
}

type AssistantConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
}

type LLMConfig struct {
	Host        string        `yaml:"host"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	PullMissing bool          `yaml:"pull_missing"`
}

// ExecutiveConfig tunes the exchange loop and task scheduling
type ExecutiveConfig struct {
	HistoryLimit int `yaml:"history_limit"`
	// DefaultOffset schedules tasks whose date could not be read
	DefaultOffset time.Duration `yaml:"default_offset"`
	// Timezone is an IANA name or "Local"
	Timezone string `yaml:"timezone"`
}

type DiscordConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Token           string `yaml:"token"`
	ChannelID       string `yaml:"channel_id"`
	OwnerID         string `yaml:"owner_id"`
	NotifyChannelID string `yaml:"notify_channel_id"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SMTPHost string `yaml:"smtp_host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Assistant: AssistantConfig{Name: "JDMMitAgente", Version: "3.0.0"},
		StatePath: "state",
		Store:     StoreConfig{Backend: store.BackendSQLite, Driver: store.DriverCGO},
		LLM: LLMConfig{
			Host:        "http://localhost:11434",
			Model:       "llama3.2",
			Timeout:     120 * time.Second,
			PullMissing: true,
		},
		Executive:        ExecutiveConfig{HistoryLimit: 5, DefaultOffset: 10 * time.Minute, Timezone: "Local"},
		Email:            EmailConfig{Port: 587},
		HTTP:             HTTPConfig{Enabled: true, Addr: ":8080"},
		EnableDesktopLog: true,
	}
}

// Load reads .env (optional), then the YAML file at path (optional when
// empty or missing), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ASSISTANT_NAME", &cfg.Assistant.Name)
	str("ASSISTANT_VERSION", &cfg.Assistant.Version)
	str("STATE_PATH", &cfg.StatePath)

	str("STORE_BACKEND", &cfg.Store.Backend)
	str("DB_DRIVER", &cfg.Store.Driver)
	str("DB_PATH", &cfg.Store.Path)

	str("OLLAMA_HOST", &cfg.LLM.Host)
	str("MODEL", &cfg.LLM.Model)
	duration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	boolean("OLLAMA_PULL", &cfg.LLM.PullMissing)

	integer("HISTORY_LIMIT", &cfg.Executive.HistoryLimit)
	duration("TASK_DEFAULT_OFFSET", &cfg.Executive.DefaultOffset)
	str("TZ_NAME", &cfg.Executive.Timezone)

	boolean("ENABLE_DISCORD", &cfg.Discord.Enabled)
	str("DISCORD_TOKEN", &cfg.Discord.Token)
	str("DISCORD_CHANNEL_ID", &cfg.Discord.ChannelID)
	str("DISCORD_OWNER_ID", &cfg.Discord.OwnerID)
	str("DISCORD_NOTIFY_CHANNEL_ID", &cfg.Discord.NotifyChannelID)

	boolean("ENABLE_EMAIL", &cfg.Email.Enabled)
	str("EMAIL_SMTP", &cfg.Email.SMTPHost)
	integer("EMAIL_PORT", &cfg.Email.Port)
	str("EMAIL_USER", &cfg.Email.User)
	str("EMAIL_PASS", &cfg.Email.Password)
	str("EMAIL_TO", &cfg.Email.To)

	boolean("ENABLE_HTTP", &cfg.HTTP.Enabled)
	str("HTTP_ADDR", &cfg.HTTP.Addr)

	boolean("ENABLE_DESKTOP_LOG", &cfg.EnableDesktopLog)
	boolean("DEBUG", &cfg.Debug)
	boolean("LOG_JSON", &cfg.LogJSON)

	return errors.Join(errs...)
}

// Validate reports every inconsistent setting at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case store.BackendSQLite, store.BackendJSON:
	default:
		errs = append(errs, fmt.Errorf("store backend must be %q or %q, got %q", store.BackendSQLite, store.BackendJSON, c.Store.Backend))
	}
	if c.Store.Backend == store.BackendSQLite {
		switch c.Store.Driver {
		case store.DriverCGO, store.DriverPureGo:
		default:
			errs = append(errs, fmt.Errorf("db driver must be %q or %q, got %q", store.DriverCGO, store.DriverPureGo, c.Store.Driver))
		}
	}
	if strings.TrimSpace(c.LLM.Host) == "" {
		errs = append(errs, errors.New("ollama host is required"))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Executive.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history limit must be positive, got %d", c.Executive.HistoryLimit))
	}
	if c.Executive.DefaultOffset < 0 {
		errs = append(errs, fmt.Errorf("task default offset must not be negative, got %s", c.Executive.DefaultOffset))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required when discord is enabled"))
	}
	if c.Email.Enabled && (c.Email.SMTPHost == "" || c.Email.User == "" || c.Email.Password == "") {
		errs = append(errs, errors.New("EMAIL_SMTP, EMAIL_USER and EMAIL_PASS are required when email is enabled"))
	}
	return errors.Join(errs...)
}

// Location resolves the executive timezone; empty or "Local" means the
// host's local zone
func (c *Config) Location() (*time.Location, error) {
	tz := c.Executive.Timezone
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// StoreOptions maps the settings onto store.Options
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:   c.Store.Backend,
		Driver:    c.Store.Driver,
		Path:      c.Store.Path,
		StatePath: c.StatePath,
	}
}

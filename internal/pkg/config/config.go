package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Betting  BettingConfig  `yaml:"betting"`
	Engine   EngineConfig   `yaml:"engine"`
	History  HistoryConfig  `yaml:"history"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TelegramConfig struct {
	Token             string `yaml:"token"`
	ChatID            int64  `yaml:"chat_id"`              // Chat the bets are read from
	NotifyBetChatID   int64  `yaml:"notify_bet_chat_id"`   // Optional: where successful bets are announced
	NotifyErrorChatID int64  `yaml:"notify_error_chat_id"` // Optional: where failed bets are announced
	UpdateTimeout     int    `yaml:"update_timeout"`       // Long polling timeout in seconds
}

type BettingConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type EngineConfig struct {
	// Decider selects how step outcomes are decided: "static", "random" or "browser"
	Decider      string        `yaml:"decider"`
	SuccessRate  float64       `yaml:"success_rate"` // random decider only
	StepTimeout  time.Duration `yaml:"step_timeout"` // 0 disables
	IdleInterval time.Duration `yaml:"idle_interval"`
	Browser      BrowserConfig `yaml:"browser"`
}

type BrowserConfig struct {
	BaseURL     string            `yaml:"base_url"`
	ShowBrowser bool              `yaml:"show_browser"`
	UserAgent   string            `yaml:"user_agent"`
	Selectors   map[string]string `yaml:"selectors"` // step name -> CSS selector that must become visible
}

type HistoryConfig struct {
	// Backend is "file" or "postgres"
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"` // empty disables update dedup
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"` // empty disables outcome publishing
	Topic   string `yaml:"topic"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port"` // 0 disables the reporting server
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Optional JSON log file
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("BETTING_USERNAME"); v != "" {
		c.Betting.Username = v
	}
	if v := os.Getenv("BETTING_PASSWORD"); v != "" {
		c.Betting.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.Telegram.UpdateTimeout <= 0 {
		c.Telegram.UpdateTimeout = 60
	}
	if c.Engine.Decider == "" {
		c.Engine.Decider = "static"
	}
	if c.Engine.SuccessRate == 0 {
		c.Engine.SuccessRate = 0.9
	}
	if c.Engine.IdleInterval <= 0 {
		c.Engine.IdleInterval = time.Second
	}
	if c.History.Backend == "" {
		c.History.Backend = "file"
	}
	if c.History.Path == "" {
		c.History.Path = "bet_history.json"
	}
	if c.Redis.DedupTTL <= 0 {
		c.Redis.DedupTTL = 24 * time.Hour
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "bet-outcomes"
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the settings the worker cannot start without.
// Betting credentials are not required here: missing credentials fail each bet instead.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (or TELEGRAM_BOT_TOKEN)"))
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chat_id is required"))
	}
	switch c.Engine.Decider {
	case "static", "random":
	case "browser":
		if c.Engine.Browser.BaseURL == "" {
			errs = append(errs, errors.New("engine.browser.base_url is required for the browser decider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine.decider %q", c.Engine.Decider))
	}
	if c.Engine.SuccessRate < 0 || c.Engine.SuccessRate > 1 {
		errs = append(errs, fmt.Errorf("engine.success_rate must be within [0,1], got %v", c.Engine.SuccessRate))
	}
	switch c.History.Backend {
	case "file":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres history backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history.backend %q", c.History.Backend))
	}
	return errors.Join(errs...)
}

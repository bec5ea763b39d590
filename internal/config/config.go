package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"

	"legalease/internal/logging"
)

// ExtractionConfig bounds PDF text extraction.
type ExtractionConfig struct {
	MaxPages      int
	MinTextLength int
}

// StoreConfig controls document lifetime and the background sweeper.
type StoreConfig struct {
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	SweepRetry     time.Duration
}

// OracleConfig holds settings for the text generation API.
// An empty APIKey selects offline mode.
type OracleConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxPromptChars  int
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// UploadConfig limits user input.
type UploadConfig struct {
	MaxFileSize       int64
	MaxQuestionLength int
}

// RateLimitConfig is the number of requests allowed per client IP within Window.
type RateLimitConfig struct {
	Analyze  int
	Question int
	Webhook  int
	Window   time.Duration
}

type CORSConfig struct {
	AllowOrigins string
}

// WhatsAppConfig holds Twilio credentials used to download media sent over WhatsApp.
type WhatsAppConfig struct {
	AccountSID   string
	AuthToken    string
	MediaTimeout time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// Defaults are overridden by an optional TOML file (CONFIG_FILE), then by environment variables.
type AppConfig struct {
	Env        string
	AppHost    string
	Port       string
	Logging    logging.Config
	Extraction ExtractionConfig
	Store      StoreConfig
	Oracle     OracleConfig
	Upload     UploadConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	WhatsApp   WhatsAppConfig
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Env:     "development",
		AppHost: "localhost:5000",
		Port:    "5000",
		Logging: logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON},
		Extraction: ExtractionConfig{
			MaxPages:      50,
			MinTextLength: 10,
		},
		Store: StoreConfig{
			SessionTimeout: time.Hour,
			SweepInterval:  5 * time.Minute,
			SweepRetry:     time.Minute,
		},
		Oracle: OracleConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-2.0-flash-exp",
			Timeout:         30 * time.Second,
			MaxPromptChars:  8000,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Upload: UploadConfig{
			MaxFileSize:       10 * units.MiB,
			MaxQuestionLength: 1000,
		},
		RateLimit: RateLimitConfig{
			Analyze:  5,
			Question: 20,
			Webhook:  50,
			Window:   5 * time.Minute,
		},
		CORS:     CORSConfig{AllowOrigins: "*"},
		WhatsApp: WhatsAppConfig{MediaTimeout: 30 * time.Second},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and the environment.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() (*AppConfig, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.Logging.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	c.Env = getEnv("APP_ENV", c.Env)
	c.AppHost = getEnv("APP_HOST", c.AppHost)
	c.Port = getEnv("PORT", c.Port)

	c.Logging.Level = logging.Level(getEnv("LOG_LEVEL", string(c.Logging.Level)))
	c.Logging.Format = logging.Format(getEnv("LOG_FORMAT", string(c.Logging.Format)))

	c.Extraction.MaxPages = getEnvInt("EXTRACT_MAX_PAGES", c.Extraction.MaxPages)
	c.Extraction.MinTextLength = getEnvInt("EXTRACT_MIN_TEXT", c.Extraction.MinTextLength)

	c.Store.SessionTimeout = getEnvDuration("SESSION_TIMEOUT", c.Store.SessionTimeout)
	c.Store.SweepInterval = getEnvDuration("SWEEP_INTERVAL", c.Store.SweepInterval)
	c.Store.SweepRetry = getEnvDuration("SWEEP_RETRY", c.Store.SweepRetry)

	c.Oracle.APIKey = getEnv("GEMINI_API_KEY", c.Oracle.APIKey)
	c.Oracle.BaseURL = getEnv("GEMINI_BASE_URL", c.Oracle.BaseURL)
	c.Oracle.Model = getEnv("GEMINI_MODEL", c.Oracle.Model)
	c.Oracle.Timeout = getEnvDuration("GEMINI_TIMEOUT", c.Oracle.Timeout)
	c.Oracle.MaxPromptChars = getEnvInt("GEMINI_MAX_PROMPT_CHARS", c.Oracle.MaxPromptChars)
	c.Oracle.BreakerFailures = uint32(getEnvInt("ORACLE_BREAKER_FAILURES", int(c.Oracle.BreakerFailures)))
	c.Oracle.BreakerCooldown = getEnvDuration("ORACLE_BREAKER_COOLDOWN", c.Oracle.BreakerCooldown)

	c.Upload.MaxFileSize = getEnvSize("MAX_FILE_SIZE", c.Upload.MaxFileSize)
	c.Upload.MaxQuestionLength = getEnvInt("MAX_QUESTION_LENGTH", c.Upload.MaxQuestionLength)

	c.RateLimit.Analyze = getEnvInt("RATE_LIMIT_ANALYZE", c.RateLimit.Analyze)
	c.RateLimit.Question = getEnvInt("RATE_LIMIT_QUESTION", c.RateLimit.Question)
	c.RateLimit.Webhook = getEnvInt("RATE_LIMIT_WEBHOOK", c.RateLimit.Webhook)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.CORS.AllowOrigins = getEnv("CORS_ALLOW_ORIGINS", c.CORS.AllowOrigins)

	c.WhatsApp.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.WhatsApp.AccountSID)
	c.WhatsApp.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.WhatsApp.AuthToken)
	c.WhatsApp.MediaTimeout = getEnvDuration("WHATSAPP_MEDIA_TIMEOUT", c.WhatsApp.MediaTimeout)
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Extraction.MaxPages <= 0 {
		errs = append(errs, errors.New("extraction max pages must be positive"))
	}
	if c.Extraction.MinTextLength < 0 {
		errs = append(errs, errors.New("extraction min text length must not be negative"))
	}
	if c.Store.SessionTimeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.Store.SweepRetry <= 0 || c.Store.SweepRetry >= c.Store.SweepInterval {
		errs = append(errs, fmt.Errorf("sweep retry (%s) must be positive and shorter than the sweep interval (%s)",
			c.Store.SweepRetry, c.Store.SweepInterval))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, errors.New("oracle timeout must be positive"))
	}
	if c.Oracle.MaxPromptChars <= 0 {
		errs = append(errs, errors.New("oracle max prompt chars must be positive"))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.Upload.MaxQuestionLength <= 0 {
		errs = append(errs, errors.New("max question length must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	return errors.Join(errs...)
}

// OfflineMode reports whether no oracle credentials are configured.
func (c *AppConfig) OfflineMode() bool {
	return strings.TrimSpace(c.Oracle.APIKey) == ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration syntax ("90s") or a bare number of seconds ("3600").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := parseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getEnvSize accepts human sizes ("10MB", binary units) or a byte count.
func getEnvSize(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			return n
		}
	}
	return def
}

func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// fileConfig mirrors AppConfig in TOML. Durations and sizes are strings.
type fileConfig struct {
	Env     string         `toml:"env"`
	AppHost string         `toml:"app_host"`
	Port    string         `toml:"port"`
	Logging logging.Config `toml:"logging"`

	Extraction struct {
		MaxPages      int `toml:"max_pages"`
		MinTextLength int `toml:"min_text_length"`
	} `toml:"extraction"`

	Store struct {
		SessionTimeout string `toml:"session_timeout"`
		SweepInterval  string `toml:"sweep_interval"`
		SweepRetry     string `toml:"sweep_retry"`
	} `toml:"store"`

	Oracle struct {
		APIKey          string `toml:"api_key"`
		BaseURL         string `toml:"base_url"`
		Model           string `toml:"model"`
		Timeout         string `toml:"timeout"`
		MaxPromptChars  int    `toml:"max_prompt_chars"`
		BreakerFailures uint32 `toml:"breaker_failures"`
		BreakerCooldown string `toml:"breaker_cooldown"`
	} `toml:"oracle"`

	Upload struct {
		MaxFileSize       string `toml:"max_file_size"`
		MaxQuestionLength int    `toml:"max_question_length"`
	} `toml:"upload"`

	RateLimit struct {
		Analyze  int    `toml:"analyze"`
		Question int    `toml:"question"`
		Webhook  int    `toml:"webhook"`
		Window   string `toml:"window"`
	} `toml:"rate_limit"`

	CORS struct {
		AllowOrigins string `toml:"allow_origins"`
	} `toml:"cors"`

	WhatsApp struct {
		AccountSID   string `toml:"account_sid"`
		AuthToken    string `toml:"auth_token"`
		MediaTimeout string `toml:"media_timeout"`
	} `toml:"whatsapp"`
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Env, f.Env)
	setString(&c.AppHost, f.AppHost)
	setString(&c.Port, f.Port)
	if f.Logging.Level != "" {
		c.Logging.Level = f.Logging.Level
	}
	if f.Logging.Format != "" {
		c.Logging.Format = f.Logging.Format
	}

	setInt(&c.Extraction.MaxPages, f.Extraction.MaxPages)
	setInt(&c.Extraction.MinTextLength, f.Extraction.MinTextLength)

	setString(&c.Oracle.APIKey, f.Oracle.APIKey)
	setString(&c.Oracle.BaseURL, f.Oracle.BaseURL)
	setString(&c.Oracle.Model, f.Oracle.Model)
	setInt(&c.Oracle.MaxPromptChars, f.Oracle.MaxPromptChars)
	if f.Oracle.BreakerFailures > 0 {
		c.Oracle.BreakerFailures = f.Oracle.BreakerFailures
	}

	setInt(&c.Upload.MaxQuestionLength, f.Upload.MaxQuestionLength)
	if f.Upload.MaxFileSize != "" {
		n, err := units.RAMInBytes(f.Upload.MaxFileSize)
		if err != nil {
			return fmt.Errorf("upload.max_file_size: %w", err)
		}
		c.Upload.MaxFileSize = n
	}

	setInt(&c.RateLimit.Analyze, f.RateLimit.Analyze)
	setInt(&c.RateLimit.Question, f.RateLimit.Question)
	setInt(&c.RateLimit.Webhook, f.RateLimit.Webhook)
	setString(&c.CORS.AllowOrigins, f.CORS.AllowOrigins)
	setString(&c.WhatsApp.AccountSID, f.WhatsApp.AccountSID)
	setString(&c.WhatsApp.AuthToken, f.WhatsApp.AuthToken)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"store.session_timeout", f.Store.SessionTimeout, &c.Store.SessionTimeout},
		{"store.sweep_interval", f.Store.SweepInterval, &c.Store.SweepInterval},
		{"store.sweep_retry", f.Store.SweepRetry, &c.Store.SweepRetry},
		{"oracle.timeout", f.Oracle.Timeout, &c.Oracle.Timeout},
		{"oracle.breaker_cooldown", f.Oracle.BreakerCooldown, &c.Oracle.BreakerCooldown},
		{"rate_limit.window", f.RateLimit.Window, &c.RateLimit.Window},
		{"whatsapp.media_timeout", f.WhatsApp.MediaTimeout, &c.WhatsApp.MediaTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

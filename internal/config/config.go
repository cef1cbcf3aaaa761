package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	App        AppConfig        `yaml:"app" mapstructure:"app"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Image      ImageConfig      `yaml:"image" mapstructure:"image"`
	Menu       MenuConfig       `yaml:"menu" mapstructure:"menu"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AppConfig holds the day/shift calendar and state caps.
type AppConfig struct {
	Timezone       string `yaml:"timezone" mapstructure:"timezone" validate:"required"`
	ResetHour      int    `yaml:"reset_hour" mapstructure:"reset_hour" validate:"min=0,max=23"`
	ShiftStartHour int    `yaml:"shift_start_hour" mapstructure:"shift_start_hour" validate:"min=0,max=23"`
	ShiftEndHour   int    `yaml:"shift_end_hour" mapstructure:"shift_end_hour" validate:"min=1,max=24,gtfield=ShiftStartHour"`
	RoastsMax      int    `yaml:"roasts_max" mapstructure:"roasts_max" validate:"min=1"`
	PlanMax        int    `yaml:"plan_max" mapstructure:"plan_max" validate:"min=1"`
}

// Location resolves the configured IANA time zone.
func (a AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", a.Timezone)
	}
	return loc, nil
}

// MailConfig holds IMAP credentials and the inbound message rules.
type MailConfig struct {
	Host            string `yaml:"host" mapstructure:"host" validate:"required"`
	Username        string `yaml:"username" mapstructure:"username"`
	Password        string `yaml:"password" mapstructure:"password"`
	Mailbox         string `yaml:"mailbox" mapstructure:"mailbox" validate:"required"`
	ScanLimit       int    `yaml:"scan_limit" mapstructure:"scan_limit" validate:"min=1"`
	AllowedSenders  string `yaml:"allowed_senders" mapstructure:"allowed_senders"`
	SubjectTrigger  string `yaml:"subject_trigger" mapstructure:"subject_trigger"`
	SubjectPasscode string `yaml:"subject_passcode" mapstructure:"subject_passcode"`
}

// Senders returns the comma-separated allow-list as trimmed, lowercased
// entries with empties dropped.
func (m MailConfig) Senders() []string {
	var out []string
	for _, s := range strings.Split(m.AllowedSenders, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IngestConfig configures the mailbox poll loop.
type IngestConfig struct {
	PollIntervalSecs    int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MinPollIntervalSecs int `yaml:"min_poll_interval_secs" mapstructure:"min_poll_interval_secs" validate:"min=1"`
	StartDelaySecs      int `yaml:"start_delay_secs" mapstructure:"start_delay_secs" validate:"min=0"`
}

// PollInterval returns the tick interval, floor-clamped to the minimum.
func (i IngestConfig) PollInterval() time.Duration {
	secs := max(i.PollIntervalSecs, i.MinPollIntervalSecs)
	return time.Duration(secs) * time.Second
}

// StartDelay returns the pause before the first tick.
func (i IngestConfig) StartDelay() time.Duration {
	return time.Duration(i.StartDelaySecs) * time.Second
}

// OCRConfig selects and configures the text extraction provider.
type OCRConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider" validate:"oneof=mistral anthropic"`
	MistralKey      string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel    string `yaml:"mistral_model" mapstructure:"mistral_model"`
	MistralEndpoint string `yaml:"mistral_endpoint" mapstructure:"mistral_endpoint"`
	AnthropicKey    string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel  string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
}

// ImageConfig controls attachment normalization before OCR.
type ImageConfig struct {
	Quality      int `yaml:"quality" mapstructure:"quality" validate:"min=1,max=100"`
	MaxDimension int `yaml:"max_dimension" mapstructure:"max_dimension" validate:"min=0"`
}

// MenuConfig points at the canonical menu. Items takes precedence over File,
// File over the Notion database.
type MenuConfig struct {
	Items          string `yaml:"items" mapstructure:"items"`
	File           string `yaml:"file" mapstructure:"file"`
	NotionToken    string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDatabase string `yaml:"notion_database" mapstructure:"notion_database"`
	NotionProperty string `yaml:"notion_property" mapstructure:"notion_property"`
	CacheTTLSecs   int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs" validate:"min=0"`
}

// MatchConfig configures menu reconciliation.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold" validate:"min=1,max=100"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=memory sqlite postgres redis"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RunsMax     int    `yaml:"runs_max" mapstructure:"runs_max" validate:"min=1"`
}

// BreakerConfig configures circuit breakers around the mailbox and OCR calls.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	StatePollSecs   int      `yaml:"state_poll_secs" mapstructure:"state_poll_secs" validate:"min=1"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RoastRatePerSec float64  `yaml:"roast_rate_per_sec" mapstructure:"roast_rate_per_sec" validate:"min=0"`
	RoastBurst      int      `yaml:"roast_burst" mapstructure:"roast_burst" validate:"min=0"`
}

// MonitoringConfig configures webhook alerts on ingestion health. Alerts are
// off when WebhookURL is empty.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"min=0,max=1"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"min=0"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours" validate:"min=1"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the variable names used by earlier
// deployments, so existing .env files keep working.
var legacyEnv = map[string]string{
	"app.timezone":              "APP_TZ",
	"app.reset_hour":            "RESET_HOUR",
	"app.shift_start_hour":      "SHIFT_START_HOUR",
	"app.shift_end_hour":        "SHIFT_END_HOUR",
	"app.roasts_max":            "ROASTS_MAX",
	"mail.username":             "GMAIL_USER",
	"mail.password":             "GMAIL_APP_PASSWORD",
	"mail.allowed_senders":      "ALLOWED_SENDERS",
	"mail.subject_trigger":      "EMAIL_SUBJECT_TRIGGER",
	"mail.subject_passcode":     "EMAIL_SUBJECT_PASSCODE",
	"ingest.poll_interval_secs": "EMAIL_POLL_SECONDS",
	"ocr.mistral_key":           "MISTRAL_API_KEY",
	"menu.items":                "MENU_ITEMS",
	"menu.file":                 "MENU_ITEMS_FILE",
	"server.port":               "PORT",
	"server.state_poll_secs":    "STATE_POLL_SECONDS",
}

const envPrefix = "BAKEBOARD"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("app.timezone", "America/Denver")
	v.SetDefault("app.reset_hour", 6)
	v.SetDefault("app.shift_start_hour", 7)
	v.SetDefault("app.shift_end_hour", 15)
	v.SetDefault("app.roasts_max", 30)
	v.SetDefault("app.plan_max", 200)
	v.SetDefault("mail.host", "imap.gmail.com:993")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.scan_limit", 10)
	v.SetDefault("mail.allowed_senders", "")
	v.SetDefault("mail.subject_trigger", "")
	v.SetDefault("mail.subject_passcode", "")
	v.SetDefault("ingest.poll_interval_secs", 60)
	v.SetDefault("ingest.min_poll_interval_secs", 10)
	v.SetDefault("ingest.start_delay_secs", 3)
	v.SetDefault("ocr.provider", "mistral")
	v.SetDefault("ocr.mistral_key", "")
	v.SetDefault("ocr.mistral_model", "pixtral-large-latest")
	v.SetDefault("ocr.mistral_endpoint", "https://api.mistral.ai/v1/chat/completions")
	v.SetDefault("ocr.anthropic_key", "")
	v.SetDefault("ocr.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ocr.max_tokens", 2048)
	v.SetDefault("ocr.timeout_secs", 90)
	v.SetDefault("image.quality", 90)
	v.SetDefault("image.max_dimension", 0)
	v.SetDefault("menu.items", "")
	v.SetDefault("menu.file", "")
	v.SetDefault("menu.notion_token", "")
	v.SetDefault("menu.notion_database", "")
	v.SetDefault("menu.notion_property", "Name")
	v.SetDefault("menu.cache_ttl_secs", 300)
	v.SetDefault("match.threshold", 80)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.runs_max", 200)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 300)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.state_poll_secs", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.roast_rate_per_sec", 2.0)
	v.SetDefault("server.roast_burst", 5)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks field ranges and cross-field rules, and that the time
// zone resolves.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
			}
			return eris.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return eris.Wrap(err, "config: validate")
	}

	if _, err := c.App.Location(); err != nil {
		return err
	}

	switch c.Store.Driver {
	case "postgres", "redis":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for driver %s", c.Store.Driver)
		}
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for quotesync
type Config struct {
	// Server endpoints
	BaseURL     string            `json:"base_url" yaml:"base_url"`
	PendingPath string            `json:"pending_path" yaml:"pending_path"`
	SyncPath    string            `json:"sync_path" yaml:"sync_path"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	// RequestTimeout of zero leaves the transport default in place.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// Polling
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`
	Backoff      BackoffConfig `json:"backoff" yaml:"backoff"`

	// Toasts
	ToastDuration   time.Duration `json:"toast_duration" yaml:"toast_duration"`
	ToastTransition time.Duration `json:"toast_transition" yaml:"toast_transition"`
	ConsoleToasts   bool          `json:"console_toasts" yaml:"console_toasts"`

	Page PageConfig `json:"page" yaml:"page"`

	// Control API
	ControlEnabled  bool    `json:"control_enabled" yaml:"control_enabled"`
	ControlAddr     string  `json:"control_addr" yaml:"control_addr"`
	CheckRatePerSec float64 `json:"check_rate_per_sec" yaml:"check_rate_per_sec"`
	CheckBurst      int     `json:"check_burst" yaml:"check_burst"`
	HistoryEnabled  bool    `json:"history_enabled" yaml:"history_enabled"`
	HistorySize     int     `json:"history_size" yaml:"history_size"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`

	Notify NotifyConfig `json:"notify" yaml:"notify"`
}

// BackoffConfig enables real backoff once MaxRetries consecutive batch
// failures have been seen. Disabled by default: the timer keeps its pace.
type BackoffConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	Initial    time.Duration `json:"initial" yaml:"initial"`
	Max        time.Duration `json:"max" yaml:"max"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
}

// PageConfig describes the route and row conventions of the quote pages.
type PageConfig struct {
	InitialPath   string        `json:"initial_path" yaml:"initial_path"`
	DetailSegment string        `json:"detail_segment" yaml:"detail_segment"`
	ListSegment   string        `json:"list_segment" yaml:"list_segment"`
	RowPrefix     string        `json:"row_prefix" yaml:"row_prefix"`
	StatusText    string        `json:"status_text" yaml:"status_text"`
	HighlightCls  string        `json:"highlight_class" yaml:"highlight_class"`
	HighlightTTL  time.Duration `json:"highlight_ttl" yaml:"highlight_ttl"`
	PromptDelay   time.Duration `json:"prompt_delay" yaml:"prompt_delay"`
	FallbackDelay time.Duration `json:"fallback_delay" yaml:"fallback_delay"`
	PromptMessage string        `json:"prompt_message" yaml:"prompt_message"`
}

// NotifyConfig lists the optional external channels toasts are mirrored to.
type NotifyConfig struct {
	DiscordWebhook    string `json:"discord_webhook" yaml:"discord_webhook"`
	SlackWebhook      string `json:"slack_webhook" yaml:"slack_webhook"`
	TeamsWebhook      string `json:"teams_webhook" yaml:"teams_webhook"`
	TelegramToken     string `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	GenericWebhookURL string `json:"generic_webhook_url" yaml:"generic_webhook_url"`
	GotifyURL         string `json:"gotify_url" yaml:"gotify_url"`
	GotifyToken       string `json:"gotify_token" yaml:"gotify_token"`
	MastodonServer    string `json:"mastodon_server" yaml:"mastodon_server"`
	MastodonToken     string `json:"mastodon_token" yaml:"mastodon_token"`
	PushoverUser      string `json:"pushover_user" yaml:"pushover_user"`
	PushoverToken     string `json:"pushover_token" yaml:"pushover_token"`
	AppriseURL        string `json:"apprise_url" yaml:"apprise_url"`

	EmailHost string   `json:"email_host" yaml:"email_host"`
	EmailPort int      `json:"email_port" yaml:"email_port"`
	EmailUser string   `json:"email_user" yaml:"email_user"`
	EmailPass string   `json:"email_pass" yaml:"email_pass"`
	EmailTo   []string `json:"email_to" yaml:"email_to"`

	NATSURL      string `json:"nats_url" yaml:"nats_url"`
	NATSSubject  string `json:"nats_subject" yaml:"nats_subject"`
	RedisAddr    string `json:"redis_addr" yaml:"redis_addr"`
	RedisPass    string `json:"redis_pass" yaml:"redis_pass"`
	RedisDB      int    `json:"redis_db" yaml:"redis_db"`
	RedisChannel string `json:"redis_channel" yaml:"redis_channel"`
}

// DefaultConfig returns the defaults of the browser poller this daemon replaces.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:5000",
		PendingPath: "/api/cotacoes-externas/polling",
		SyncPath:    "/api/cotacoes-externas/sincronizar-render",

		PollInterval: 20 * time.Second,
		InitialDelay: 2 * time.Second,
		MaxRetries:   3,
		Backoff: BackoffConfig{
			Enabled:    false,
			Initial:    5 * time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2.0,
		},

		ToastDuration:   5 * time.Second,
		ToastTransition: 400 * time.Millisecond,

		Page: PageConfig{
			DetailSegment: "cotacao",
			ListSegment:   "cotacoes",
			RowPrefix:     "row-forn-",
			StatusText:    "Respondido",
			HighlightCls:  "row-sync-updated",
			HighlightTTL:  3 * time.Second,
			PromptDelay:   1500 * time.Millisecond,
			FallbackDelay: 2 * time.Second,
			PromptMessage: "New response received! Reload the page to see the updated data?",
		},

		ControlEnabled:  true,
		ControlAddr:     ":8088",
		CheckRatePerSec: 1,
		CheckBurst:      3,
		HistoryEnabled:  true,
		HistorySize:     200,

		InfluxInterval: 1 * time.Minute,

		Notify: NotifyConfig{
			EmailPort:    25,
			NATSSubject:  "quotesync.responses",
			RedisChannel: "quotesync:responses",
		},
	}
}

// PendingURL is the absolute URL of the pending-responses endpoint.
func (c *Config) PendingURL() string { return joinURL(c.BaseURL, c.PendingPath) }

// SyncURL is the absolute URL of the sync endpoint.
func (c *Config) SyncURL() string { return joinURL(c.BaseURL, c.SyncPath) }

func joinURL(base, path string) string {
	if path == "" {
		return strings.TrimRight(base, "/")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate returns a list of non-fatal configuration warnings, such as
// incomplete notifier credential combinations.
func (c *Config) Validate() []string {
	var warnings []string
	n := c.Notify
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.PollInterval <= 0, "poll interval must be positive; the default will be used"},
		{c.ToastDuration <= 0, "toast duration must be positive; the default will be used"},
		{c.MaxRetries < 1, "max retries below 1; the default will be used"},
		{c.Backoff.Enabled && c.Backoff.Multiplier < 1, "backoff multiplier below 1 never grows the window"},
		{n.GotifyURL != "" && n.GotifyToken == "", "gotify URL provided but token is missing"},
		{n.GotifyToken != "" && n.GotifyURL == "", "gotify token provided but URL is missing"},
		{(n.MastodonServer == "") != (n.MastodonToken == ""), "mastodon needs both server and access token"},
		{(n.PushoverUser == "") != (n.PushoverToken == ""), "pushover needs both user key and API token"},
		{n.TelegramToken != "" && n.TelegramChatID == "", "telegram token provided but chat id is missing"},
		{n.EmailHost != "" && len(n.EmailTo) == 0, "email host provided but no recipients configured (email_to)"},
		{n.EmailHost == "" && len(n.EmailTo) > 0, "email recipients configured but email host is empty"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if w := validateBaseURL(c.BaseURL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// Normalize replaces invalid values reported by Validate with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ToastDuration <= 0 {
		c.ToastDuration = def.ToastDuration
	}
	if c.ToastTransition < 0 {
		c.ToastTransition = def.ToastTransition
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = def.MaxRetries
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
}

func validateBaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("invalid base URL: %q (expected http(s)://host[:port])", raw)
	}
	return ""
}

// LoadConfigFromFile loads config from a YAML or TOML file, chosen by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		// TOML has no duration type; round-trip through YAML so "20s" style
		// strings decode the same way in both formats.
		var raw map[string]interface{}
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if b, err = yaml.Marshal(raw); err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

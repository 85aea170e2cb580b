package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "QUOTESYNC_"

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported (all prefixed with QUOTESYNC_):
// - BASE_URL, PENDING_PATH, SYNC_PATH (strings)
// - HEADERS ("Name=value;Other=value")
// - REQUEST_TIMEOUT, POLL_INTERVAL, INITIAL_DELAY (durations, e.g. "20s")
// - MAX_RETRIES (int)
// - BACKOFF_ENABLED (bool), BACKOFF_INITIAL, BACKOFF_MAX (durations)
// - TOAST_DURATION, TOAST_TRANSITION (durations), CONSOLE_TOASTS (bool)
// - PAGE_PATH, PAGE_DETAIL_SEGMENT, PAGE_LIST_SEGMENT, PAGE_ROW_PREFIX
// - CONTROL_ENABLED (bool), CONTROL_ADDR, CHECK_RATE (float), CHECK_BURST (int)
// - HISTORY_ENABLED (bool), HISTORY_SIZE (int)
// - METRICS_ENABLED (bool), INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET, INFLUX_INTERVAL
// - notifier settings, see applyNotifyEnv
func ApplyEnvOverrides(cfg *Config) error {
	steps := []func(*Config) error{
		applyServerEnv,
		applyPollingEnv,
		applyPresentationEnv,
		applyControlEnv,
		applyMetricsEnv,
		applyNotifyEnv,
	}
	for _, step := range steps {
		if err := step(cfg); err != nil {
			return err
		}
	}
	return nil
}

func applyServerEnv(cfg *Config) error {
	setStringEnv("BASE_URL", &cfg.BaseURL)
	setStringEnv("PENDING_PATH", &cfg.PendingPath)
	setStringEnv("SYNC_PATH", &cfg.SyncPath)
	if v := getenv("HEADERS"); v != "" {
		h, err := parseHeaders(v)
		if err != nil {
			return fmt.Errorf("invalid %sHEADERS: %w", envPrefix, err)
		}
		cfg.Headers = h
	}
	return setDurationEnv("REQUEST_TIMEOUT", &cfg.RequestTimeout)
}

func applyPollingEnv(cfg *Config) error {
	if err := setDurationEnv("POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return err
	}
	if err := setDurationEnv("INITIAL_DELAY", &cfg.InitialDelay); err != nil {
		return err
	}
	if err := setIntEnv("MAX_RETRIES", &cfg.MaxRetries); err != nil {
		return err
	}
	if err := setBoolEnv("BACKOFF_ENABLED", func(b bool) { cfg.Backoff.Enabled = b }); err != nil {
		return err
	}
	if err := setDurationEnv("BACKOFF_INITIAL", &cfg.Backoff.Initial); err != nil {
		return err
	}
	return setDurationEnv("BACKOFF_MAX", &cfg.Backoff.Max)
}

func applyPresentationEnv(cfg *Config) error {
	if err := setDurationEnv("TOAST_DURATION", &cfg.ToastDuration); err != nil {
		return err
	}
	if err := setDurationEnv("TOAST_TRANSITION", &cfg.ToastTransition); err != nil {
		return err
	}
	if err := setBoolEnv("CONSOLE_TOASTS", func(b bool) { cfg.ConsoleToasts = b }); err != nil {
		return err
	}
	setStringEnv("PAGE_PATH", &cfg.Page.InitialPath)
	setStringEnv("PAGE_DETAIL_SEGMENT", &cfg.Page.DetailSegment)
	setStringEnv("PAGE_LIST_SEGMENT", &cfg.Page.ListSegment)
	setStringEnv("PAGE_ROW_PREFIX", &cfg.Page.RowPrefix)
	return nil
}

func applyControlEnv(cfg *Config) error {
	if err := setBoolEnv("CONTROL_ENABLED", func(b bool) { cfg.ControlEnabled = b }); err != nil {
		return err
	}
	setStringEnv("CONTROL_ADDR", &cfg.ControlAddr)
	if v := getenv("CHECK_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sCHECK_RATE: %w", envPrefix, err)
		}
		cfg.CheckRatePerSec = f
	}
	if err := setIntEnv("CHECK_BURST", &cfg.CheckBurst); err != nil {
		return err
	}
	if err := setBoolEnv("HISTORY_ENABLED", func(b bool) { cfg.HistoryEnabled = b }); err != nil {
		return err
	}
	return setIntEnv("HISTORY_SIZE", &cfg.HistorySize)
}

// applyMetricsEnv consolidates metrics and Influx env parsing
func applyMetricsEnv(cfg *Config) error {
	if err := setBoolEnv("METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	setStringEnv("INFLUX_URL", &cfg.InfluxURL)
	setStringEnv("INFLUX_TOKEN", &cfg.InfluxToken)
	setStringEnv("INFLUX_ORG", &cfg.InfluxOrg)
	setStringEnv("INFLUX_BUCKET", &cfg.InfluxBucket)
	return setDurationEnv("INFLUX_INTERVAL", &cfg.InfluxInterval)
}

// applyNotifyEnv handles the external notification channels.
func applyNotifyEnv(cfg *Config) error {
	n := &cfg.Notify
	setStringEnv("DISCORD_WEBHOOK", &n.DiscordWebhook)
	setStringEnv("SLACK_WEBHOOK", &n.SlackWebhook)
	setStringEnv("TEAMS_WEBHOOK", &n.TeamsWebhook)
	setStringEnv("TELEGRAM_TOKEN", &n.TelegramToken)
	setStringEnv("TELEGRAM_CHAT_ID", &n.TelegramChatID)
	setStringEnv("GENERIC_WEBHOOK_URL", &n.GenericWebhookURL)
	setStringEnv("GOTIFY_URL", &n.GotifyURL)
	setStringEnv("GOTIFY_TOKEN", &n.GotifyToken)
	setStringEnv("MASTODON_SERVER", &n.MastodonServer)
	setStringEnv("MASTODON_TOKEN", &n.MastodonToken)
	setStringEnv("PUSHOVER_USER", &n.PushoverUser)
	setStringEnv("PUSHOVER_TOKEN", &n.PushoverToken)
	setStringEnv("APPRISE_URL", &n.AppriseURL)
	setStringEnv("EMAIL_HOST", &n.EmailHost)
	setStringEnv("EMAIL_USER", &n.EmailUser)
	setStringEnv("EMAIL_PASS", &n.EmailPass)
	if err := setIntEnv("EMAIL_PORT", &n.EmailPort); err != nil {
		return err
	}
	if v := getenv("EMAIL_TO"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		n.EmailTo = parts
	}
	setStringEnv("NATS_URL", &n.NATSURL)
	setStringEnv("NATS_SUBJECT", &n.NATSSubject)
	setStringEnv("REDIS_ADDR", &n.RedisAddr)
	setStringEnv("REDIS_PASS", &n.RedisPass)
	setStringEnv("REDIS_CHANNEL", &n.RedisChannel)
	return setIntEnv("REDIS_DB", &n.RedisDB)
}

func getenv(key string) string {
	return os.Getenv(envPrefix + key)
}

func setStringEnv(key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(key string, setter func(bool)) error {
	if v := getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		setter(b)
	}
	return nil
}

func setIntEnv(key string, dst *int) error {
	if v := getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

func setDurationEnv(key string, dst *time.Duration) error {
	if v := getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = d
	}
	return nil
}

// parseHeaders parses "Name=value;Other=value" pairs.
func parseHeaders(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed header pair %q", pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

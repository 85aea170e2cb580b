package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
)

// --- Slack ---
type Slack struct {
	WebhookURL string
}

func (s *Slack) Name() string { return "Slack" }
func (s *Slack) Send(ctx context.Context, ev Event) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf("*%s*\n%s", ev.Title, ev.Message),
		"blocks": []map[string]interface{}{
			{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": fmt.Sprintf("*%s*\n%s", ev.Title, ev.Message)}},
			{"type": "context", "elements": []map[string]string{{"type": "mrkdwn", "text": fmt.Sprintf("quote `%s` · supplier `%s`", ev.QuoteID, ev.SupplierID)}}},
		},
	}
	return postJSON(ctx, s.WebhookURL, payload, nil)
}

// --- Discord ---
type Discord struct {
	WebhookURL string
}

func (d *Discord) Name() string { return "Discord" }
func (d *Discord) Send(ctx context.Context, ev Event) error {
	payload := map[string]interface{}{
		"username": "quotesync",
		"embeds": []map[string]interface{}{{
			"title":       ev.Title,
			"description": ev.Message,
			"color":       2664261, // #28a745
			"timestamp":   eventTime(ev).Format(time.RFC3339),
			"fields": []map[string]interface{}{
				{"name": "Supplier", "value": ev.SupplierName, "inline": true},
				{"name": "Quote", "value": ev.QuoteID, "inline": true},
			},
		}},
	}
	return postJSON(ctx, d.WebhookURL, payload, nil)
}

// --- Teams ---
type Teams struct{ WebhookURL string }

func (t *Teams) Name() string { return "Teams" }
func (t *Teams) Send(ctx context.Context, ev Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "28A745",
		"summary":    ev.Title,
		"sections": []map[string]interface{}{{
			"activityTitle": ev.Title,
			"activityText":  ev.Message,
			"facts": []map[string]string{
				{"name": "Supplier", "value": ev.SupplierName},
				{"name": "Quote", "value": ev.QuoteID},
			},
		}},
	}
	return postJSON(ctx, t.WebhookURL, payload, nil)
}

// --- Mastodon ---

// Mastodon posts a private status; suppliers and quotes are rarely public.
type Mastodon struct{ ServerURL, AccessToken string }

func (m *Mastodon) Name() string { return "Mastodon" }
func (m *Mastodon) Send(ctx context.Context, ev Event) error {
	endpoint := fmt.Sprintf("%s/api/v1/statuses", strings.TrimRight(m.ServerURL, "/"))
	payload := map[string]string{"status": fmt.Sprintf("%s\n\n%s", ev.Title, ev.Message), "visibility": "private"}
	return postJSON(ctx, endpoint, payload, map[string]string{"Authorization": "Bearer " + m.AccessToken})
}

// --- Telegram ---
var telegramAPIBase = "https://api.telegram.org"

type Telegram struct{ BotToken, ChatID string }

func (t *Telegram) Name() string { return "Telegram" }
func (t *Telegram) Send(ctx context.Context, ev Event) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.BotToken)
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(ev.Title), html.EscapeString(ev.Message))
	payload := map[string]string{"chat_id": t.ChatID, "text": text, "parse_mode": "HTML"}
	return postJSON(ctx, apiURL, payload, nil)
}

func eventTime(ev Event) time.Time {
	if ev.At.IsZero() {
		return time.Now()
	}
	return ev.At
}

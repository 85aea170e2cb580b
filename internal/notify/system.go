package notify

import (
	"context"
	"fmt"
	"strings"
)

// --- Apprise (Gateway) ---
type Apprise struct{ APIURL string }

func (a *Apprise) Name() string { return "Apprise" }
func (a *Apprise) Send(ctx context.Context, ev Event) error {
	payload := map[string]string{"title": ev.Title, "body": ev.Message, "format": "text", "type": "success"}
	return postJSON(ctx, a.APIURL, payload, nil)
}

// --- Gotify (Self-Hosted Push) ---
type Gotify struct{ ServerURL, Token string }

func (g *Gotify) Name() string { return "Gotify" }
func (g *Gotify) Send(ctx context.Context, ev Event) error {
	url := fmt.Sprintf("%s/message", strings.TrimRight(g.ServerURL, "/"))
	payload := map[string]interface{}{
		"title":    ev.Title,
		"message":  ev.Message,
		"priority": 5,
		"extras": map[string]interface{}{
			"quotesync::response": map[string]string{"quote_id": ev.QuoteID, "supplier_id": ev.SupplierID},
		},
	}
	return postJSON(ctx, url, payload, map[string]string{"X-Gotify-Key": g.Token})
}

// --- Pushover (Mobile Push) ---
var pushoverAPIURL = "https://api.pushover.net/1/messages.json"

type Pushover struct{ UserKey, APIToken string }

func (p *Pushover) Name() string { return "Pushover" }
func (p *Pushover) Send(ctx context.Context, ev Event) error {
	payload := map[string]string{
		"token":     p.APIToken,
		"user":      p.UserKey,
		"title":     ev.Title,
		"message":   ev.Message,
		"timestamp": fmt.Sprintf("%d", eventTime(ev).Unix()),
		"html":      "0",
	}
	return postJSON(ctx, pushoverAPIURL, payload, nil)
}

// --- Generic Webhook ---

// Generic posts the whole event as JSON.
type Generic struct{ WebhookURL string }

func (g *Generic) Name() string { return "GenericWebhook" }
func (g *Generic) Send(ctx context.Context, ev Event) error {
	payload := struct {
		Event
		Agent string `json:"agent"`
	}{ev, "quotesync"}
	payload.At = eventTime(ev)
	return postJSON(ctx, g.WebhookURL, payload, nil)
}

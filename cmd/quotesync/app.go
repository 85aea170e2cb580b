package main

import (
	"context"
	"io"

	"github.com/quotesync/quotesync/internal/clock"
	"github.com/quotesync/quotesync/internal/config"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/notify"
	"github.com/quotesync/quotesync/internal/page"
	"github.com/quotesync/quotesync/internal/poller"
	"github.com/quotesync/quotesync/internal/quote"
	"github.com/quotesync/quotesync/internal/state"
	"github.com/quotesync/quotesync/internal/toast"
)

// app is the wired set of components shared by the run and check commands.
type app struct {
	cfg       *config.Config
	notifier  *notify.MultiNotifier
	toasts    *toast.Presenter
	doc       *page.Document
	reflector *page.Reflector
	journal   *state.Journal
	poller    *poller.Poller
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) *app {
	a := &app{cfg: cfg}
	a.initNotifiers(ctx)

	client := quote.NewClient(cfg.PendingURL(), cfg.SyncURL(),
		quote.WithTimeout(cfg.RequestTimeout),
		quote.WithHeaders(cfg.Headers),
		quote.WithUserAgent("quotesync/"+version))

	toastOpts := []toast.Option{toast.WithDuration(cfg.ToastDuration), toast.WithTransition(cfg.ToastTransition)}
	if cfg.ConsoleToasts {
		toastOpts = append(toastOpts, toast.WithRenderer(toast.NewConsoleRenderer(out)))
	}
	a.toasts = toast.New(toastOpts...)

	a.doc = page.NewDocument(clock.Real(), cfg.Page.InitialPath, cfg.Page.HighlightTTL)
	a.reflector = page.NewReflector(a.doc, cfg.Page, clock.Real())

	opts := []poller.Option{poller.WithToaster(a.toasts), poller.WithReflector(a.reflector)}
	if a.notifier.Len() > 0 {
		opts = append(opts, poller.WithNotifier(a.notifier))
	}
	if cfg.HistoryEnabled {
		a.journal = state.NewJournal(state.DefaultPath(), cfg.HistorySize)
		opts = append(opts, poller.WithJournal(a.journal))
		logging.Get().Info().Str("path", a.journal.Path()).Msg("recording synchronized responses")
	}
	a.poller = poller.New(cfg, client, opts...)
	return a
}

// initNotifiers registers every notifier whose settings are complete.
// Broker connections that fail are logged and skipped.
func (a *app) initNotifiers(ctx context.Context) {
	a.notifier = notify.NewMultiNotifier()
	n := a.cfg.Notify
	entries := []struct {
		enabled bool
		add     func()
	}{
		{n.DiscordWebhook != "", func() { a.notifier.Add(&notify.Discord{WebhookURL: n.DiscordWebhook}) }},
		{n.SlackWebhook != "", func() { a.notifier.Add(&notify.Slack{WebhookURL: n.SlackWebhook}) }},
		{n.TeamsWebhook != "", func() { a.notifier.Add(&notify.Teams{WebhookURL: n.TeamsWebhook}) }},
		{n.TelegramToken != "" && n.TelegramChatID != "", func() {
			a.notifier.Add(&notify.Telegram{BotToken: n.TelegramToken, ChatID: n.TelegramChatID})
		}},
		{n.EmailHost != "" && len(n.EmailTo) > 0, func() {
			a.notifier.Add(&notify.Email{Host: n.EmailHost, Port: n.EmailPort, User: n.EmailUser, Pass: n.EmailPass, To: n.EmailTo})
		}},
		{n.GenericWebhookURL != "", func() { a.notifier.Add(&notify.Generic{WebhookURL: n.GenericWebhookURL}) }},
		{n.GotifyURL != "" && n.GotifyToken != "", func() { a.notifier.Add(&notify.Gotify{ServerURL: n.GotifyURL, Token: n.GotifyToken}) }},
		{n.MastodonServer != "" && n.MastodonToken != "", func() {
			a.notifier.Add(&notify.Mastodon{ServerURL: n.MastodonServer, AccessToken: n.MastodonToken})
		}},
		{n.PushoverUser != "" && n.PushoverToken != "", func() {
			a.notifier.Add(&notify.Pushover{UserKey: n.PushoverUser, APIToken: n.PushoverToken})
		}},
		{n.AppriseURL != "", func() { a.notifier.Add(&notify.Apprise{APIURL: n.AppriseURL}) }},
		{n.NATSURL != "", func() {
			nc, err := notify.DialNATS(n.NATSURL, n.NATSSubject)
			if err != nil {
				logging.Get().Warn().Err(err).Str("url", n.NATSURL).Msg("failed to connect to NATS, skipping notifier")
				return
			}
			a.notifier.Add(nc)
			a.closers = append(a.closers, nc.Close)
		}},
		{n.RedisAddr != "", func() {
			rc, err := notify.DialRedis(ctx, n.RedisAddr, n.RedisPass, n.RedisDB, n.RedisChannel)
			if err != nil {
				logging.Get().Warn().Err(err).Str("addr", n.RedisAddr).Msg("failed to connect to Redis, skipping notifier")
				return
			}
			a.notifier.Add(rc)
			a.closers = append(a.closers, rc.Close)
		}},
	}
	for _, e := range entries {
		if e.enabled {
			e.add()
		}
	}
	if a.notifier.Len() > 0 {
		logging.Get().Info().Strs("notifiers", a.notifier.Names()).Msg("notifiers enabled")
	}
}

// shutdown stops the poller, cancels scheduled page updates and closes broker
// connections.
func (a *app) shutdown(ctx context.Context) {
	a.poller.Stop(ctx)
	a.reflector.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			logging.Get().Warn().Err(err).Msg("failed closing notifier connection")
		}
	}
}

// Package poller periodically asks the procurement server for supplier
// responses that have not been synchronized yet, synchronizes each one and
// hands it to the presentation layer.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quotesync/quotesync/internal/backoff"
	"github.com/quotesync/quotesync/internal/clock"
	"github.com/quotesync/quotesync/internal/config"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/metrics"
	"github.com/quotesync/quotesync/internal/notify"
	"github.com/quotesync/quotesync/internal/quote"
	"github.com/quotesync/quotesync/internal/state"
	"github.com/quotesync/quotesync/internal/toast"
)

// Status is a point-in-time view of the poller, served by the control API.
type Status struct {
	Active        bool       `json:"active"`
	InFlight      bool       `json:"inFlight"`
	IntervalMs    int64      `json:"intervalMs"`
	RetryCount    int        `json:"retryCount"`
	MaxRetries    int        `json:"maxRetries"`
	LastCheckAt   *time.Time `json:"lastCheckAt,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	BackoffUntil  *time.Time `json:"backoffUntil,omitempty"`
}

// Poller runs poll cycles on a timer. Only one cycle runs at a time; checks
// that arrive while one is in flight, or while the poller is paused, are
// no-ops.
type Poller struct {
	src       Source
	toaster   Toaster
	reflector Reflector
	notifier  notify.Sender
	journal   Recorder
	clock     clock.Clock

	interval     time.Duration
	initialDelay time.Duration
	maxRetries   int
	useBackoff   bool

	active   atomic.Bool
	inFlight atomic.Bool

	mu            sync.Mutex
	retryCount    int
	lastCheckAt   time.Time
	lastSuccessAt time.Time
	backoffUntil  time.Time
	bo            *backoff.Backoff

	wg       sync.WaitGroup // tracks launched and manual cycles
	quit     chan struct{}
	stopOnce sync.Once
	stopping bool // guarded by mu; no cycles are added to wg once set
	started  atomic.Bool
	done     chan struct{}
	cancel   context.CancelFunc

	// life is cancelled by Stop; manual checks run on it rather than on
	// their caller's context.
	life     context.Context
	lifeStop context.CancelFunc
}

// Option wires an optional collaborator into the poller.
type Option func(*Poller)

func WithClock(c clock.Clock) Option { return func(p *Poller) { p.clock = c } }

func WithToaster(t Toaster) Option { return func(p *Poller) { p.toaster = t } }

func WithReflector(r Reflector) Option { return func(p *Poller) { p.reflector = r } }

// WithNotifier mirrors every shown toast to external channels.
func WithNotifier(s notify.Sender) Option { return func(p *Poller) { p.notifier = s } }

// WithJournal records every synchronized response.
func WithJournal(r Recorder) Option { return func(p *Poller) { p.journal = r } }

// New creates a poller reading from src with the timing settings of cfg.
func New(cfg *config.Config, src Source, opts ...Option) *Poller {
	p := &Poller{
		src:          src,
		clock:        clock.Real(),
		interval:     cfg.PollInterval,
		initialDelay: cfg.InitialDelay,
		maxRetries:   cfg.MaxRetries,
		useBackoff:   cfg.Backoff.Enabled,
		bo:           backoff.New(cfg.Backoff.Initial, cfg.Backoff.Max, cfg.Backoff.Multiplier),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if p.interval <= 0 {
		p.interval = config.DefaultConfig().PollInterval
	}
	if p.maxRetries < 1 {
		p.maxRetries = 1
	}
	p.life, p.lifeStop = context.WithCancel(context.Background())
	p.active.Store(true)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start waits for the initial delay, runs a first check and then one check per
// interval until ctx is cancelled or Stop is called. It blocks.
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	defer close(p.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	log := logging.Component("poller")
	log.Info().Dur("interval", p.interval).Dur("initial_delay", p.initialDelay).Msg("starting quote response poller")

	select {
	case <-p.clock.After(p.initialDelay):
	case <-ctx.Done():
		return
	case <-p.quit:
		return
	}
	p.launch(ctx, false)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			p.launch(ctx, true)
		case <-ctx.Done():
			logging.Component("poller").Info().Msg("stopping poller")
			return
		case <-p.quit:
			logging.Component("poller").Info().Msg("stopping poller")
			return
		}
	}
}

// launch runs a check in its own goroutine so a slow cycle never delays the
// timer. Timer ticks honour the backoff window; the first check does not.
func (p *Poller) launch(ctx context.Context, tick bool) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if tick && p.inBackoff() {
			metrics.IncSkipped(metrics.SkipBackoff)
			logging.Component("poller").Debug().Msg("inside backoff window, skipping tick")
			return
		}
		p.CheckOnce(ctx)
	}()
}

func (p *Poller) inBackoff() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.backoffUntil.IsZero() && p.clock.Now().Before(p.backoffUntil)
}

// CheckOnce runs one poll cycle. It returns false without touching the network
// when the poller is paused or a cycle is already in flight.
func (p *Poller) CheckOnce(ctx context.Context) bool {
	log := logging.Component("poller")
	if !p.active.Load() {
		metrics.IncSkipped(metrics.SkipPaused)
		log.Debug().Msg("poller paused, skipping check")
		return false
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.IncSkipped(metrics.SkipInFlight)
		log.Debug().Msg("check already in flight, skipping")
		return false
	}
	defer p.inFlight.Store(false)

	start := p.clock.Now()
	p.mu.Lock()
	p.lastCheckAt = start
	p.mu.Unlock()

	items, err := p.src.FetchPending(ctx)
	defer func() { metrics.ObservePoll(start, p.clock.Now(), err == nil) }()
	if err != nil {
		p.recordFailure(err)
		return true
	}
	p.recordSuccess()

	if len(items) == 0 {
		log.Debug().Msg("no pending responses")
		return true
	}
	log.Info().Int("count", len(items)).Msg("pending responses found")
	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("cycle cancelled, remaining responses left for the next cycle")
			break
		}
		p.syncItem(ctx, item)
	}
	return true
}

// CheckNow is a user-requested check. It ignores the backoff window but not
// pause or the in-flight guard. The cycle keeps the values of ctx but not its
// cancellation: a caller that goes away does not abort the batch, only Stop
// does. Stop waits for manual cycles like it does for timer cycles.
func (p *Poller) CheckNow(ctx context.Context) bool {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	unlink := context.AfterFunc(p.life, cancel)
	defer unlink()

	logging.Component("poller").Info().Msg("manual check requested")
	return p.CheckOnce(ctx)
}

func (p *Poller) recordFailure(err error) {
	metrics.IncPollFailed()
	p.mu.Lock()
	if p.retryCount < p.maxRetries {
		p.retryCount++
	}
	n := p.retryCount
	var until time.Time
	if n >= p.maxRetries && p.useBackoff {
		until = p.clock.Now().Add(p.bo.Next())
		p.backoffUntil = until
	}
	p.mu.Unlock()
	metrics.SetRetryCount(n)

	log := logging.Component("poller")
	if n < p.maxRetries {
		log.Error().Err(err).Int("attempt", n).Int("max_retries", p.maxRetries).Msg("failed to fetch pending responses")
		return
	}
	ev := log.Warn().Err(err).Int("retries", n)
	if !until.IsZero() {
		ev = ev.Time("backoff_until", until)
	}
	ev.Msg("max retries reached, waiting for next cycle")
}

func (p *Poller) recordSuccess() {
	metrics.IncPoll()
	p.mu.Lock()
	p.retryCount = 0
	p.lastSuccessAt = p.clock.Now()
	p.backoffUntil = time.Time{}
	p.bo.Reset()
	p.mu.Unlock()
	metrics.SetRetryCount(0)
}

// syncItem synchronizes one response. A failure is logged and does not affect
// the other responses of the cycle.
func (p *Poller) syncItem(ctx context.Context, item quote.PendingResponse) {
	log := logging.Component("poller")
	name := item.DisplayName()
	quoteID := item.QuoteID.String()

	if err := p.src.Sync(ctx, item); err != nil {
		metrics.IncSyncFailed()
		log.Error().Err(err).Str("supplier", name).Str("quote", quoteID).Msg("failed to synchronize response")
		return
	}
	metrics.IncSync()
	log.Info().Str("supplier", name).Str("quote", quoteID).Msg("response synchronized")

	var toastID string
	if p.toaster != nil {
		p.guard("toast", func() { toastID = p.toaster.Show(name, quoteID) })
	}
	if p.reflector != nil {
		p.guard("page", func() { p.reflector.Reflect(item) })
	}
	now := p.clock.Now()
	if p.notifier != nil {
		ev := notify.Event{
			Title:        toast.Title,
			Message:      toast.Message(name, quoteID),
			SupplierName: name,
			SupplierID:   item.SupplierID.String(),
			QuoteID:      quoteID,
			ToastID:      toastID,
			At:           now,
		}
		// notifications outlive the cycle so Stop can wait for them
		p.guard("notify", func() { p.notifier.Send(context.WithoutCancel(ctx), ev) })
	}
	if p.journal != nil {
		rec := state.Record{
			Token:        item.Token,
			SupplierName: name,
			SupplierID:   item.SupplierID.String(),
			QuoteID:      quoteID,
			ToastID:      toastID,
			SyncedAt:     now,
		}
		if err := p.journal.Append(rec); err != nil {
			log.Warn().Err(err).Str("quote", quoteID).Msg("failed to record synchronized response")
		}
	}
}

// guard runs a presentation hook, turning a panic into a log line.
func (p *Poller) guard(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Component("poller").Error().Interface("panic", r).Str("hook", hook).Msg("presentation hook panicked")
		}
	}()
	fn()
}

// Pause turns every later check into a no-op. A cycle already in flight runs
// to completion.
func (p *Poller) Pause() {
	if p.active.CompareAndSwap(true, false) {
		logging.Component("poller").Info().Msg("polling paused")
	}
}

func (p *Poller) Resume() {
	if p.active.CompareAndSwap(false, true) {
		logging.Component("poller").Info().Msg("polling resumed")
	}
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Active:     p.active.Load(),
		InFlight:   p.inFlight.Load(),
		IntervalMs: p.interval.Milliseconds(),
		RetryCount: p.retryCount,
		MaxRetries: p.maxRetries,
	}
	s.LastCheckAt = timePtr(p.lastCheckAt)
	s.LastSuccessAt = timePtr(p.lastSuccessAt)
	s.BackoffUntil = timePtr(p.backoffUntil)
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Stop ends the loop and waits, bounded by ctx, for launched cycles and for
// pending notifications.
func (p *Poller) Stop(ctx context.Context) {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.mu.Lock()
		p.stopping = true
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Unlock()
		p.lifeStop()
	})

	done := make(chan struct{})
	go func() {
		if p.started.Load() {
			<-p.done
		}
		p.wg.Wait()
		close(done)
	}()
	log := logging.Component("poller")
	select {
	case <-done:
		log.Info().Msg("all active checks completed")
	case <-ctx.Done():
		log.Warn().Msg("shutdown timeout exceeded, a check may still be running")
	}

	if w, ok := p.notifier.(interface{ Wait(context.Context) error }); ok {
		if err := w.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("timed out waiting for notifiers to finish")
		}
	}
}

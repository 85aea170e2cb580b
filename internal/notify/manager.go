package notify

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/quotesync/quotesync/internal/logging"
)

// DefaultNotifierCooldown suppresses repeats of the same response on the same
// service, e.g. when the server re-lists an item whose sync confirmation was lost.
var DefaultNotifierCooldown = time.Minute

// NotifierRetry settings (can be tuned in tests)
var notifierMaxRetries = 3
var notifierBaseBackoff = 200 * time.Millisecond

// notifierBackoffJitter adds up to this random duration to backoff
var notifierBackoffJitter = 50 * time.Millisecond

// sleepHook is used in tests to avoid sleeping for real
var sleepHook = time.Sleep

var httpClient = &http.Client{Timeout: 10 * time.Second}

// MultiNotifier bundles all active services
type MultiNotifier struct {
	services []Service
	// lastSent tracks the last successful send per service and event key
	lastSent map[string]time.Time
	cooldown time.Duration
	// per-provider cooldowns
	providerCooldowns map[string]time.Duration
	mu                sync.Mutex
	wg                sync.WaitGroup
}

func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{
		services:          make([]Service, 0),
		lastSent:          make(map[string]time.Time),
		cooldown:          DefaultNotifierCooldown,
		providerCooldowns: make(map[string]time.Duration),
	}
}

// SetProviderCooldown sets a cooldown for a named provider (by Service.Name())
func (m *MultiNotifier) SetProviderCooldown(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providerCooldowns[name] = d
}

// SetCooldown adjusts the global cooldown
func (m *MultiNotifier) SetCooldown(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown = d
}

func (m *MultiNotifier) providerCooldown(name string) time.Duration {
	if v, ok := m.providerCooldowns[name]; ok {
		return v
	}
	return m.cooldown
}

func (m *MultiNotifier) Add(s Service) {
	if s != nil {
		m.services = append(m.services, s)
	}
}

func (m *MultiNotifier) Len() int {
	return len(m.services)
}

// Names lists the configured services.
func (m *MultiNotifier) Names() []string {
	out := make([]string, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s.Name())
	}
	return out
}

// Wait waits for pending notification sends to complete or until the provided
// context is cancelled.
func (m *MultiNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers ev to every service in the background with per-service
// retries. It never blocks the caller on network I/O.
func (m *MultiNotifier) Send(ctx context.Context, ev Event) {
	now := time.Now()
	for _, s := range m.services {
		m.wg.Add(1)
		go func(svc Service) {
			defer m.wg.Done()
			name := svc.Name()
			if !m.claim(name, ev.Key(), now) {
				logging.Get().Debug().Str("service", name).Str("key", ev.Key()).Msg("skipping repeated notification due to cooldown")
				return
			}
			if err := m.sendWithRetries(ctx, svc, ev); err != nil {
				m.release(name, ev.Key())
				logging.Get().Error().Err(err).Str("service", name).Msg("all notification retries failed")
			}
		}(s)
	}
}

// claim reserves the (service, key) slot unless it was used within the
// cooldown. Reserving before sending keeps two concurrent sends of the same
// event from both going out.
func (m *MultiNotifier) claim(name, key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := name + "|" + key
	if last, ok := m.lastSent[k]; ok && now.Sub(last) < m.providerCooldown(name) {
		return false
	}
	m.lastSent[k] = now
	return true
}

func (m *MultiNotifier) release(name, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSent, name+"|"+key)
}

// sendWithRetries attempts to send a notification with retries and backoff. Returns last error if any.
func (m *MultiNotifier) sendWithRetries(ctx context.Context, s Service, ev Event) error {
	var lastErr error
	for attempt := 1; attempt <= notifierMaxRetries; attempt++ {
		err := s.Send(ctx, ev)
		if err == nil {
			logging.Get().Debug().Str("service", s.Name()).Str("key", ev.Key()).Msg("notification sent")
			return nil
		}
		lastErr = err
		logging.Get().Warn().Err(err).Str("service", s.Name()).Int("attempt", attempt).Msg("notification attempt failed")
		if attempt == notifierMaxRetries {
			break
		}
		d := backoffDuration(attempt)
		sleep := sleepHook
		slept := make(chan struct{})
		go func() {
			sleep(d)
			close(slept)
		}()
		select {
		case <-slept:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// backoffDuration returns the computed backoff including optional jitter for the given attempt
func backoffDuration(attempt int) time.Duration {
	d := notifierBaseBackoff * time.Duration(1<<uint(attempt-1))
	if notifierBackoffJitter > 0 {
		if n, err := crand.Int(crand.Reader, big.NewInt(int64(notifierBackoffJitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// postJSON is a shared helper used by providers
func postJSON(ctx context.Context, url string, data interface{}, headers map[string]string) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return nil
}

// Package toast keeps the stack of transient notifications shown when a quote
// response is synchronized. Toasts auto-expire and leave in two phases: they
// are first marked hiding, then removed once the hide transition has run.
package toast

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotesync/quotesync/internal/clock"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/metrics"
)

const (
	DefaultDuration   = 5 * time.Second
	DefaultTransition = 400 * time.Millisecond

	Title = "New quote response received"
)

// Message is the body of the toast announcing that displayName answered the
// quote identified by correlationID.
func Message(displayName, correlationID string) string {
	return fmt.Sprintf("%s answered quote %s", displayName, correlationID)
}

// State is the visual phase of a toast.
type State string

const (
	StateShowing State = "showing"
	StateHiding  State = "hiding"
)

// Toast is a snapshot of one notification.
type Toast struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	DisplayName   string    `json:"display_name"`
	CorrelationID string    `json:"correlation_id"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Renderer draws toasts somewhere (a terminal, a websocket, a test recorder).
type Renderer interface {
	Shown(t Toast)
	Removed(t Toast)
}

type entry struct {
	toast Toast
	auto  clock.Timer
}

// Presenter owns the toast stack.
type Presenter struct {
	mu         sync.Mutex
	clock      clock.Clock
	duration   time.Duration
	transition time.Duration
	toasts     map[string]*entry
	order      []string
	renderers  []Renderer
	newID      func(now time.Time) string
}

// Option customizes a Presenter.
type Option func(*Presenter)

func WithClock(c clock.Clock) Option { return func(p *Presenter) { p.clock = c } }

// WithDuration sets how long a toast stays before auto-dismissal.
func WithDuration(d time.Duration) Option {
	return func(p *Presenter) {
		if d > 0 {
			p.duration = d
		}
	}
}

// WithTransition sets the delay between hiding and removal.
func WithTransition(d time.Duration) Option {
	return func(p *Presenter) {
		if d >= 0 {
			p.transition = d
		}
	}
}

func WithRenderer(r Renderer) Option {
	return func(p *Presenter) {
		if r != nil {
			p.renderers = append(p.renderers, r)
		}
	}
}

func New(opts ...Option) *Presenter {
	p := &Presenter{
		clock:      clock.Real(),
		duration:   DefaultDuration,
		transition: DefaultTransition,
		toasts:     make(map[string]*entry),
		newID:      newToastID,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// newToastID combines the creation time with random bits so toasts created in
// the same millisecond still get distinct ids.
func newToastID(now time.Time) string {
	return fmt.Sprintf("toast-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Show stacks a new toast announcing that displayName answered the quote
// identified by correlationID, and returns its id.
func (p *Presenter) Show(displayName, correlationID string) string {
	now := p.clock.Now()
	t := Toast{
		ID:            p.newID(now),
		Title:         Title,
		Message:       Message(displayName, correlationID),
		DisplayName:   displayName,
		CorrelationID: correlationID,
		State:         StateShowing,
		CreatedAt:     now,
		ExpiresAt:     now.Add(p.duration),
	}

	p.mu.Lock()
	e := &entry{toast: t}
	p.toasts[t.ID] = e
	p.order = append(p.order, t.ID)
	e.auto = p.clock.AfterFunc(p.duration, func() { p.Dismiss(t.ID) })
	p.mu.Unlock()

	metrics.IncToast()
	logging.Get().Debug().Str("toast", t.ID).Str("supplier", displayName).Msg("toast shown")
	for _, r := range p.renderers {
		r.Shown(t)
	}
	return t.ID
}

// Dismiss starts the hide transition of a toast. It returns false for unknown
// ids and for toasts that are already hiding.
func (p *Presenter) Dismiss(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.toasts[id]
	if !ok || e.toast.State != StateShowing {
		return false
	}
	e.toast.State = StateHiding
	if e.auto != nil {
		e.auto.Stop()
	}
	p.clock.AfterFunc(p.transition, func() { p.remove(id) })
	return true
}

func (p *Presenter) remove(id string) {
	p.mu.Lock()
	e, ok := p.toasts[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.toasts, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	t := e.toast
	p.mu.Unlock()

	logging.Get().Debug().Str("toast", id).Msg("toast removed")
	for _, r := range p.renderers {
		r.Removed(t)
	}
}

// List returns the current toasts in creation order.
func (p *Presenter) List() []Toast {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Toast, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.toasts[id].toast)
	}
	return out
}

// Get returns one toast by id.
func (p *Presenter) Get(id string) (Toast, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.toasts[id]
	if !ok {
		return Toast{}, false
	}
	return e.toast, true
}

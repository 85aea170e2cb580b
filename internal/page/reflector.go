package page

import (
	"strings"
	"sync"
	"time"

	"github.com/quotesync/quotesync/internal/clock"
	"github.com/quotesync/quotesync/internal/config"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/quote"
)

const defaultPromptMessage = "New quote responses were synchronized. Reload the page to see them?"

// Reflector applies a synchronized response to the page the operator is
// looking at.
type Reflector struct {
	page  Page
	cfg   config.PageConfig
	clock clock.Clock

	mu      sync.Mutex
	nextID  int
	pending map[int]clock.Timer
	closed  bool
}

func NewReflector(p Page, cfg config.PageConfig, c clock.Clock) *Reflector {
	if c == nil {
		c = clock.Real()
	}
	if cfg.PromptMessage == "" {
		cfg.PromptMessage = defaultPromptMessage
	}
	return &Reflector{page: p, cfg: cfg, clock: c, pending: make(map[int]clock.Timer)}
}

// Reflect updates the page for one synchronized response. On the response's
// quote detail page the supplier row is marked and a reload prompt follows;
// when that row is missing the page reloads on its own after a short delay.
// The quote list page and any other page are left alone.
func (r *Reflector) Reflect(item quote.PendingResponse) {
	log := logging.Component("page")
	path := r.page.Path()
	quoteID := item.QuoteID.String()

	switch {
	case IsDetailRoute(path, r.cfg.DetailSegment, quoteID):
		key := r.cfg.RowPrefix + item.SupplierID.String()
		if r.page.MarkRow(key, r.cfg.StatusText, r.cfg.HighlightCls) {
			log.Debug().Str("row", key).Str("quote", quoteID).Msg("row marked as answered")
			r.schedule(r.cfg.PromptDelay, path, func() { r.page.PromptReload(r.cfg.PromptMessage) })
			return
		}
		log.Debug().Str("row", key).Str("quote", quoteID).Msg("row not found, reloading")
		r.schedule(r.cfg.FallbackDelay, path, func() { r.page.Reload(ReloadFallback) })
	case hasSegment(path, r.cfg.ListSegment):
		log.Debug().Str("path", path).Msg("quote list open, nothing to update")
	}
}

// schedule runs fn after d unless the page has navigated away from path by
// then or the reflector was closed.
func (r *Reflector) schedule(d time.Duration, path string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	id := r.nextID
	r.nextID++
	r.pending[id] = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		_, live := r.pending[id]
		delete(r.pending, id)
		r.mu.Unlock()
		if !live || r.page.Path() != path {
			return
		}
		fn()
	})
}

// Pending reports how many prompts or reloads are still scheduled.
func (r *Reflector) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close cancels every scheduled prompt and reload.
func (r *Reflector) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.pending {
		t.Stop()
		delete(r.pending, id)
	}
}

// IsDetailRoute reports whether path contains the segment detail followed
// directly by the segment quoteID. Query strings and fragments are ignored.
func IsDetailRoute(path, detail, quoteID string) bool {
	if detail == "" || quoteID == "" {
		return false
	}
	segs := segments(path)
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == detail && segs[i+1] == quoteID {
			return true
		}
	}
	return false
}

func hasSegment(path, seg string) bool {
	if seg == "" {
		return false
	}
	for _, s := range segments(path) {
		if s == seg {
			return true
		}
	}
	return false
}

func segments(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

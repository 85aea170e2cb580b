// Package page models the quote page an operator has open and reflects newly
// synchronized responses onto it.
package page

import (
	"sort"
	"sync"
	"time"

	"github.com/quotesync/quotesync/internal/clock"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/metrics"
)

// Reload kinds, also used as metric labels.
const (
	ReloadPrompt   = "prompt"
	ReloadFallback = "fallback"
)

// Page is what the reflector needs from a rendered page.
type Page interface {
	Path() string
	// MarkRow sets the status text of a row and adds a class to it as a
	// single update. It reports false when the row does not exist.
	MarkRow(key, status, class string) bool
	PromptReload(message string)
	Reload(kind string)
}

// Row is a snapshot of one table row.
type Row struct {
	Key     string   `json:"key"`
	Status  string   `json:"status"`
	Classes []string `json:"classes"`
}

// Prompt is a pending, non-blocking reload offer.
type Prompt struct {
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// Snapshot is a consistent copy of the whole document.
type Snapshot struct {
	Path       string    `json:"path"`
	Rows       []Row     `json:"rows"`
	Prompt     *Prompt   `json:"prompt,omitempty"`
	Reloads    int       `json:"reloads"`
	LastReload time.Time `json:"last_reload,omitempty"`
}

type row struct {
	status     string
	classes    []string
	highlights map[string]*highlight
}

type highlight struct{ timer clock.Timer }

func (r *row) hasClass(c string) bool {
	for _, v := range r.classes {
		if v == c {
			return true
		}
	}
	return false
}

func (r *row) dropClass(c string) {
	for i, v := range r.classes {
		if v == c {
			r.classes = append(r.classes[:i], r.classes[i+1:]...)
			return
		}
	}
}

func (r *row) clearHighlights() {
	for c, h := range r.highlights {
		if h.timer != nil {
			h.timer.Stop()
		}
		r.dropClass(c)
		delete(r.highlights, c)
	}
}

// Document is an in-memory Page. Classes added by MarkRow are temporary
// highlights and expire after the configured TTL.
type Document struct {
	mu           sync.Mutex
	clock        clock.Clock
	highlightTTL time.Duration
	path         string
	rows         map[string]*row
	prompt       *Prompt
	reloads      int
	lastReload   time.Time
}

// NewDocument returns an empty document at path. A zero highlightTTL keeps
// highlights until the next reload.
func NewDocument(c clock.Clock, path string, highlightTTL time.Duration) *Document {
	if c == nil {
		c = clock.Real()
	}
	return &Document{
		clock:        c,
		highlightTTL: highlightTTL,
		path:         path,
		rows:         make(map[string]*row),
	}
}

func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// SetPath navigates to another page, which drops the current rows and any
// pending prompt.
func (d *Document) SetPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.rows {
		r.clearHighlights()
	}
	d.path = path
	d.rows = make(map[string]*row)
	d.prompt = nil
}

// PutRow creates or updates a row's status.
func (d *Document) PutRow(key, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rows[key]
	if !ok {
		r = &row{highlights: make(map[string]*highlight)}
		d.rows[key] = r
	}
	r.status = status
}

func (d *Document) RemoveRow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rows[key]
	if !ok {
		return false
	}
	r.clearHighlights()
	delete(d.rows, key)
	return true
}

func (d *Document) MarkRow(key, status, class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rows[key]
	if !ok {
		return false
	}
	r.status = status
	if class == "" {
		return true
	}
	if !r.hasClass(class) {
		r.classes = append(r.classes, class)
	}
	if h, ok := r.highlights[class]; ok && h.timer != nil {
		h.timer.Stop()
	}
	h := &highlight{}
	r.highlights[class] = h
	if d.highlightTTL > 0 {
		h.timer = d.clock.AfterFunc(d.highlightTTL, func() { d.expire(r, class, h) })
	}
	return true
}

// expire drops a highlight unless it has been re-applied since h was set.
func (d *Document) expire(r *row, class string, h *highlight) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.highlights[class] != h {
		return
	}
	delete(r.highlights, class)
	r.dropClass(class)
}

func (d *Document) PromptReload(message string) {
	d.mu.Lock()
	d.prompt = &Prompt{Message: message, RaisedAt: d.clock.Now()}
	d.mu.Unlock()
	logging.Component("page").Info().Str("path", d.Path()).Msg("reload prompt raised")
}

// AcceptPrompt reloads the page if a prompt is pending.
func (d *Document) AcceptPrompt() bool {
	d.mu.Lock()
	pending := d.prompt != nil
	d.mu.Unlock()
	if !pending {
		return false
	}
	d.Reload(ReloadPrompt)
	return true
}

func (d *Document) DismissPrompt() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.prompt == nil {
		return false
	}
	d.prompt = nil
	return true
}

// Reload re-renders the page: highlights and the prompt are cleared, rows and
// their statuses stay.
func (d *Document) Reload(kind string) {
	d.mu.Lock()
	for _, r := range d.rows {
		r.clearHighlights()
	}
	d.prompt = nil
	d.reloads++
	d.lastReload = d.clock.Now()
	path := d.path
	d.mu.Unlock()

	metrics.IncReload(kind)
	logging.Component("page").Info().Str("path", path).Str("kind", kind).Msg("page reloaded")
}

func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

func (d *Document) Row(key string) (Row, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rows[key]
	if !ok {
		return Row{}, false
	}
	return Row{Key: key, Status: r.status, Classes: append([]string(nil), r.classes...)}, true
}

func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{Path: d.path, Reloads: d.reloads, LastReload: d.lastReload, Rows: make([]Row, 0, len(d.rows))}
	for k, r := range d.rows {
		s.Rows = append(s.Rows, Row{Key: k, Status: r.status, Classes: append([]string{}, r.classes...)})
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].Key < s.Rows[j].Key })
	if d.prompt != nil {
		p := *d.prompt
		s.Prompt = &p
	}
	return s
}

// Package state keeps a small on-disk journal of synchronized quote responses
// so operators can see what was announced across restarts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one synchronized response as it was announced.
type Record struct {
	Token        string    `json:"token,omitempty"`
	SupplierName string    `json:"supplier_name"`
	SupplierID   string    `json:"supplier_id"`
	QuoteID      string    `json:"quote_id"`
	ToastID      string    `json:"toast_id,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`
}

const stateFileName = "quotesync_journal.json"

// DefaultPath picks the journal location: $QUOTESYNC_STATE_DIR, then
// /var/lib/quotesync, then the working directory, then the temp dir.
func DefaultPath() string {
	if dir := os.Getenv("QUOTESYNC_STATE_DIR"); dir != "" {
		return filepath.Join(dir, stateFileName)
	}
	defaultDir := "/var/lib/quotesync"
	if err := os.MkdirAll(defaultDir, 0o755); err == nil {
		return filepath.Join(defaultDir, stateFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, stateFileName)
	}
	return filepath.Join(os.TempDir(), stateFileName)
}

// Journal is a bounded, newest-last list of Records persisted as JSON.
type Journal struct {
	mu    sync.Mutex
	path  string
	limit int
}

// NewJournal returns a journal at path keeping at most limit records
// (limit <= 0 means unbounded).
func NewJournal(path string, limit int) *Journal {
	return &Journal{path: path, limit: limit}
}

// Path is the backing file.
func (j *Journal) Path() string { return j.path }

// loadUnlocked reads the journal WITHOUT acquiring the mutex.
func (j *Journal) loadUnlocked() ([]Record, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("load journal: %w", err)
	}
	var out []Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal journal: %w", err)
	}
	return out, nil
}

// saveUnlocked writes the journal WITHOUT acquiring the mutex. The file is
// written to a sibling temp file and renamed so readers never see a torn write.
func (j *Journal) saveUnlocked(recs []Record) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("mkdir journal dir: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	return nil
}

// Append adds r and trims the oldest records beyond the limit. The whole
// read-modify-write cycle holds the mutex to avoid lost updates.
func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	recs, err := j.loadUnlocked()
	if err != nil {
		return err
	}
	recs = append(recs, r)
	if j.limit > 0 && len(recs) > j.limit {
		recs = recs[len(recs)-j.limit:]
	}
	return j.saveUnlocked(recs)
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (j *Journal) Recent(n int) ([]Record, error) {
	j.mu.Lock()
	recs, err := j.loadUnlocked()
	j.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(recs) {
		n = len(recs)
	}
	out := make([]Record, 0, n)
	for i := len(recs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

// ForQuote returns the records of one quote, oldest first.
func (j *Journal) ForQuote(quoteID string) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	recs, err := j.loadUnlocked()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0)
	for _, r := range recs {
		if r.QuoteID == quoteID {
			out = append(out, r)
		}
	}
	return out, nil
}

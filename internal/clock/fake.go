package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks scheduled with AfterFunc run
// synchronously inside Advance, in due-time order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	fc      *Fake
	seq     int
	due     time.Time
	period  time.Duration // >0 for tickers
	fn      func()
	ch      chan time.Time
	stopped bool
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.add(d, 0, fn, nil)
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.add(d, 0, nil, ch)
	return ch
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	ch := make(chan time.Time, 1)
	return &fakeTicker{w: f.add(d, d, nil, ch)}
}

func (f *Fake) add(d, period time.Duration, fn func(), ch chan time.Time) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	w := &fakeWaiter{fc: f, seq: f.seq, due: f.now.Add(d), period: period, fn: fn, ch: ch}
	f.waiters = append(f.waiters, w)
	return w
}

// Pending reports how many timers and tickers are still scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing everything that falls due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	for {
		w := f.nextDue(target)
		if w == nil {
			break
		}
		w.fire()
	}
	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// nextDue pops the earliest waiter due at or before target and moves the
// clock to its due time.
func (f *Fake) nextDue(target time.Time) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	f.waiters = live
	sort.SliceStable(f.waiters, func(i, j int) bool {
		if f.waiters[i].due.Equal(f.waiters[j].due) {
			return f.waiters[i].seq < f.waiters[j].seq
		}
		return f.waiters[i].due.Before(f.waiters[j].due)
	})
	if len(f.waiters) == 0 || f.waiters[0].due.After(target) {
		return nil
	}
	w := f.waiters[0]
	if w.due.After(f.now) {
		f.now = w.due
	}
	if w.period > 0 {
		w.due = w.due.Add(w.period)
	} else {
		w.stopped = true
	}
	return w
}

func (w *fakeWaiter) fire() {
	if w.fn != nil {
		w.fn()
		return
	}
	select {
	case w.ch <- w.fc.Now():
	default:
	}
}

func (w *fakeWaiter) Stop() bool {
	w.fc.mu.Lock()
	defer w.fc.mu.Unlock()
	was := !w.stopped
	w.stopped = true
	return was
}

type fakeTicker struct{ w *fakeWaiter }

func (t *fakeTicker) C() <-chan time.Time { return t.w.ch }
func (t *fakeTicker) Stop()               { t.w.Stop() }

package poller_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

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

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PollInterval = 20 * time.Second
	cfg.InitialDelay = 2 * time.Second
	cfg.MaxRetries = 3
	return cfg
}

func resp(name, supplier, quoteID string) quote.PendingResponse {
	return quote.PendingResponse{SupplierName: name, SupplierID: quote.ID(supplier), QuoteID: quote.ID(quoteID)}
}

// captureLogs redirects the global logger for the duration of the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logging.SetOutput(buf)
	t.Cleanup(func() { logging.SetOutput(io.Discard) })
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingSender struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSender) Send(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSender) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func TestCheckOnceSyncsEveryItemInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	toaster := NewMockToaster(ctrl)
	reflector := NewMockReflector(ctrl)

	a, b, c := resp("Acme", "F1", "Q9"), resp("Beta", "F2", "Q9"), resp("Gamma", "F3", "Q7")
	src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{a, b, c}, nil)
	gomock.InOrder(
		src.EXPECT().Sync(gomock.Any(), a).Return(nil),
		toaster.EXPECT().Show("Acme", "Q9").Return("toast-1"),
		reflector.EXPECT().Reflect(a),
		src.EXPECT().Sync(gomock.Any(), b).Return(errBoom),
		src.EXPECT().Sync(gomock.Any(), c).Return(nil),
		toaster.EXPECT().Show("Gamma", "Q7").Return("toast-2"),
		reflector.EXPECT().Reflect(c),
	)

	p := poller.New(testConfig(), src, poller.WithToaster(toaster), poller.WithReflector(reflector))
	require.True(t, p.CheckOnce(testContext(t)))

	st := p.Status()
	assert.Equal(t, 0, st.RetryCount)
	assert.False(t, st.InFlight)
	assert.NotNil(t, st.LastSuccessAt)
}

func TestCheckOnceWhileInFlightIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	release := make(chan struct{})
	entered := make(chan struct{})
	src.EXPECT().FetchPending(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]quote.PendingResponse, error) {
		close(entered)
		<-release
		return nil, nil
	}).Times(1)

	p := poller.New(testConfig(), src)
	first := make(chan bool)
	go func() { first <- p.CheckOnce(context.Background()) }()
	<-entered

	assert.True(t, p.Status().InFlight)
	assert.False(t, p.CheckOnce(context.Background()))
	assert.False(t, p.CheckNow(context.Background()))

	close(release)
	assert.True(t, <-first)
	assert.False(t, p.Status().InFlight)
}

func TestPauseAndResume(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().FetchPending(gomock.Any()).Return(nil, nil).Times(1)

	p := poller.New(testConfig(), src)
	p.Pause()
	assert.False(t, p.Status().Active)
	assert.False(t, p.CheckOnce(testContext(t)))
	assert.False(t, p.CheckNow(testContext(t)))

	p.Resume()
	assert.True(t, p.Status().Active)
	assert.True(t, p.CheckOnce(testContext(t)))
}

func TestRetryCounterCapsAndWarns(t *testing.T) {
	logs := captureLogs(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := quote.NewClient(srv.URL+"/pending", srv.URL+"/sync")
	p := poller.New(testConfig(), src)

	for i := 1; i <= 3; i++ {
		require.True(t, p.CheckOnce(testContext(t)))
		assert.Equal(t, i, p.Status().RetryCount)
	}
	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "max retries reached, waiting for next cycle"))
	assert.Equal(t, 2, strings.Count(out, "failed to fetch pending responses"))

	// the timer keeps going: a fourth cycle still hits the server
	require.True(t, p.CheckOnce(testContext(t)))
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, 3, p.Status().RetryCount)
}

func TestUnsuccessfulAndMalformedBatchesCountAsFailures(t *testing.T) {
	bodies := []string{`{"success":false,"error":"db down"}`, `not json`}
	var i atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bodies[int(i.Add(1)-1)%len(bodies)]))
	}))
	defer srv.Close()

	p := poller.New(testConfig(), quote.NewClient(srv.URL+"/pending", srv.URL+"/sync"))
	p.CheckOnce(testContext(t))
	p.CheckOnce(testContext(t))
	assert.Equal(t, 2, p.Status().RetryCount)
}

func TestEmptyBatchResetsRetryCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	toaster := NewMockToaster(ctrl)
	gomock.InOrder(
		src.EXPECT().FetchPending(gomock.Any()).Return(nil, errBoom).Times(2),
		src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{}, nil),
	)

	p := poller.New(testConfig(), src, poller.WithToaster(toaster))
	p.CheckOnce(testContext(t))
	p.CheckOnce(testContext(t))
	require.Equal(t, 2, p.Status().RetryCount)

	p.CheckOnce(testContext(t))
	assert.Equal(t, 0, p.Status().RetryCount)
}

func TestPanickingHookDoesNotStopCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	toaster := NewMockToaster(ctrl)
	reflector := NewMockReflector(ctrl)

	a, b := resp("Acme", "F1", "Q9"), resp("Beta", "F2", "Q9")
	src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{a, b}, nil)
	src.EXPECT().Sync(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	toaster.EXPECT().Show(gomock.Any(), gomock.Any()).DoAndReturn(func(string, string) string {
		panic("renderer exploded")
	}).Times(2)
	reflector.EXPECT().Reflect(gomock.Any()).Times(2)

	p := poller.New(testConfig(), src, poller.WithToaster(toaster), poller.WithReflector(reflector))
	assert.True(t, p.CheckOnce(testContext(t)))
	assert.False(t, p.Status().InFlight)
}

func TestSyncedResponseIsJournaledAndNotified(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	toaster := NewMockToaster(ctrl)
	journal := NewMockRecorder(ctrl)
	sender := &recordingSender{}

	item := resp("Acme", "F1", "Q9")
	item.Token = "tok-1"
	src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{item}, nil)
	src.EXPECT().Sync(gomock.Any(), item).Return(nil)
	toaster.EXPECT().Show("Acme", "Q9").Return("toast-42")
	journal.EXPECT().Append(gomock.Any()).DoAndReturn(func(r state.Record) error {
		assert.Equal(t, "tok-1", r.Token)
		assert.Equal(t, "Q9", r.QuoteID)
		assert.Equal(t, "F1", r.SupplierID)
		assert.Equal(t, "toast-42", r.ToastID)
		return errBoom
	})

	p := poller.New(testConfig(), src,
		poller.WithToaster(toaster), poller.WithJournal(journal), poller.WithNotifier(sender))
	require.True(t, p.CheckOnce(testContext(t)))

	events := sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "toast-42", events[0].ToastID)
	assert.Equal(t, "Q9/F1", events[0].Key())
	assert.Contains(t, events[0].Message, "Acme")
}

func TestStartLoopHonoursPause(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	var fetches atomic.Int32
	src.EXPECT().FetchPending(gomock.Any()).DoAndReturn(func(context.Context) ([]quote.PendingResponse, error) {
		fetches.Add(1)
		return nil, nil
	}).AnyTimes()

	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := poller.New(testConfig(), src, poller.WithClock(fc))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	waitPending(t, fc, 1)
	fc.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	waitPending(t, fc, 1)
	fc.Advance(20 * time.Second)
	assert.Eventually(t, func() bool { return fetches.Load() == 2 }, time.Second, 5*time.Millisecond)

	p.Pause()
	fc.Advance(20 * time.Second)
	assert.Never(t, func() bool { return fetches.Load() != 2 }, 100*time.Millisecond, 10*time.Millisecond)

	p.Resume()
	fc.Advance(20 * time.Second)
	assert.Eventually(t, func() bool { return fetches.Load() == 3 }, time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	p.Stop(stopCtx)
	assert.Equal(t, 0, fc.Pending())
}

func TestBackoffSkipsTicksButNotManualChecks(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	var fetches atomic.Int32
	src.EXPECT().FetchPending(gomock.Any()).DoAndReturn(func(context.Context) ([]quote.PendingResponse, error) {
		fetches.Add(1)
		return nil, errBoom
	}).AnyTimes()

	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.InitialDelay = 0
	cfg.Backoff = config.BackoffConfig{Enabled: true, Initial: time.Minute, Max: 5 * time.Minute, Multiplier: 2}

	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := poller.New(cfg, src, poller.WithClock(fc))
	go p.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	}()

	waitPending(t, fc, 1)
	fc.Advance(0)
	assert.Eventually(t, func() bool { return p.Status().BackoffUntil != nil }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), fetches.Load())

	waitPending(t, fc, 1)
	fc.Advance(20 * time.Second)
	assert.Never(t, func() bool { return fetches.Load() != 1 }, 100*time.Millisecond, 10*time.Millisecond)

	assert.True(t, p.CheckNow(context.Background()))
	assert.Equal(t, int32(2), fetches.Load())

	// the manual failure pushed the window out again; beyond any jittered
	// value of the doubled interval the ticks resume
	fc.Advance(3 * time.Minute)
	assert.Eventually(t, func() bool { return fetches.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	p := poller.New(testConfig(), NewMockSource(gomock.NewController(t)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)
	p.Stop(ctx)
}

// TestAnsweredSupplierEndToEnd drives a real client, toast presenter and page
// reflector: Acme (F1) answers quote Q9 while the operator has /cotacao/Q9 open.
func TestAnsweredSupplierEndToEnd(t *testing.T) {
	var synced atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cotacoes-externas/polling", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"respostas":[{"fornecedor_nome":"Acme","fornecedor_id":"F1","cotacao_id":"Q9"}]}`))
	})
	mux.HandleFunc("/api/cotacoes-externas/sincronizar-render", func(w http.ResponseWriter, r *http.Request) {
		synced.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	doc := page.NewDocument(fc, "/cotacao/Q9", cfg.Page.HighlightTTL)
	doc.PutRow("row-forn-F1", "Pendente")
	toasts := toast.New(toast.WithClock(fc))
	p := poller.New(cfg, quote.NewClient(cfg.PendingURL(), cfg.SyncURL()),
		poller.WithClock(fc),
		poller.WithToaster(toasts),
		poller.WithReflector(page.NewReflector(doc, cfg.Page, fc)))

	require.True(t, p.CheckOnce(testContext(t)))
	assert.Equal(t, int32(1), synced.Load())

	list := toasts.List()
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "Acme")

	row, ok := doc.Row("row-forn-F1")
	require.True(t, ok)
	assert.Equal(t, "Respondido", row.Status)
	assert.Contains(t, row.Classes, "row-sync-updated")

	fc.Advance(cfg.Page.PromptDelay)
	assert.NotNil(t, doc.Snapshot().Prompt)
}

func waitPending(t *testing.T, fc *clock.Fake, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return fc.Pending() >= n }, time.Second, time.Millisecond)
}

func TestCheckNowOutlivesCallerContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	toaster := NewMockToaster(ctrl)

	a, b := resp("Acme", "F1", "Q9"), resp("Beta", "F2", "Q9")
	caller, hangUp := context.WithCancel(context.Background())
	src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{a, b}, nil)
	gomock.InOrder(
		src.EXPECT().Sync(gomock.Any(), a).DoAndReturn(func(ctx context.Context, _ quote.PendingResponse) error {
			hangUp()
			return ctx.Err()
		}),
		toaster.EXPECT().Show("Acme", "Q9").Return("toast-1"),
		src.EXPECT().Sync(gomock.Any(), b).DoAndReturn(func(ctx context.Context, _ quote.PendingResponse) error {
			return ctx.Err()
		}),
		toaster.EXPECT().Show("Beta", "Q9").Return("toast-2"),
	)

	p := poller.New(testConfig(), src, poller.WithToaster(toaster))
	require.True(t, p.CheckNow(caller))
	assert.Error(t, caller.Err())
}

func TestStopCancelsAndWaitsForManualCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	entered := make(chan struct{})
	var sawCancel atomic.Bool
	src.EXPECT().FetchPending(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]quote.PendingResponse, error) {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(true)
		return nil, ctx.Err()
	})

	p := poller.New(testConfig(), src)
	go p.CheckNow(context.Background())
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)
	assert.True(t, sawCancel.Load(), "Stop returned before the manual check finished")

	// no new manual checks once stopped
	assert.False(t, p.CheckNow(context.Background()))
}

func pollDurationSum(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "quotesync_poll_duration_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleSum()
		}
	}
	t.Fatal("poll duration histogram not registered")
	return 0
}

func TestPollDurationCoversSyncCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	src.EXPECT().FetchPending(gomock.Any()).Return([]quote.PendingResponse{resp("Acme", "F1", "Q9")}, nil)
	src.EXPECT().Sync(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, quote.PendingResponse) error {
		fc.Advance(3 * time.Second)
		return nil
	})

	before := pollDurationSum(t)
	p := poller.New(testConfig(), src, poller.WithClock(fc))
	require.True(t, p.CheckOnce(testContext(t)))
	assert.InDelta(t, 3.0, pollDurationSum(t)-before, 0.001)
}

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

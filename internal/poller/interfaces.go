package poller

//go:generate mockgen -package=poller_test -destination=mock_interfaces_test.go -source=interfaces.go

import (
	"context"

	"github.com/quotesync/quotesync/internal/quote"
	"github.com/quotesync/quotesync/internal/state"
)

// Source lists pending responses and synchronizes them one at a time.
// *quote.Client implements it.
type Source interface {
	FetchPending(ctx context.Context) ([]quote.PendingResponse, error)
	Sync(ctx context.Context, item quote.PendingResponse) error
}

// Toaster shows a transient notification and returns its id.
type Toaster interface {
	Show(displayName, correlationID string) string
}

// Reflector updates the open page for a synchronized response.
type Reflector interface {
	Reflect(item quote.PendingResponse)
}

// Recorder keeps a history of synchronized responses.
type Recorder interface {
	Append(r state.Record) error
}

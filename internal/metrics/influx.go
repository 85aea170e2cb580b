package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quotesync/quotesync/internal/logging"
)

// StartInfluxPusher pushes a snapshot to InfluxDB every interval until ctx is done.
func StartInfluxPusher(ctx context.Context, baseURL, token, org, bucket string, interval time.Duration) {
	if baseURL == "" || bucket == "" {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	logging.Get().Info().Str("url", baseURL).Dur("interval", interval).Msg("starting influxdb pusher")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	writeURL := influxWriteURL(baseURL, org, bucket)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pushToInflux(ctx, client, writeURL, token, GetSnapshot(), time.Now()); err != nil {
				logging.Get().Warn().Err(err).Msg("influxdb push failed")
			}
		}
	}
}

func influxWriteURL(baseURL, org, bucket string) string {
	q := url.Values{}
	q.Set("org", org)
	q.Set("bucket", bucket)
	q.Set("precision", "s")
	return strings.TrimRight(baseURL, "/") + "/api/v2/write?" + q.Encode()
}

// lineProtocol renders a snapshot as one Influx line:
// quotesync polls=10i,polls_failed=0i,... 1678888888
func lineProtocol(s StatsSnapshot, now time.Time) string {
	return fmt.Sprintf(
		"quotesync polls=%di,polls_failed=%di,syncs=%di,syncs_failed=%di,checks_skipped=%di,toasts=%di,reloads=%di,retry_count=%di,last_poll=%di %d",
		s.Polls, s.PollsFailed, s.Syncs, s.SyncsFailed, s.Skipped, s.ToastsShown, s.Reloads, s.RetryCount, s.LastPoll, now.Unix(),
	)
}

func pushToInflux(ctx context.Context, client *http.Client, writeURL, token string, s StatsSnapshot, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, bytes.NewReader([]byte(lineProtocol(s, now))))
	if err != nil {
		return fmt.Errorf("influxdb request creation failed: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb rejected metrics: status %d", resp.StatusCode)
	}
	return nil
}

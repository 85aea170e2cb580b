package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/quotesync/quotesync/internal/control"
	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(f *cliFlags) *cobra.Command {
	var controlAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll continuously until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := prepare(cmd, f)
			if err != nil {
				return err
			}
			defer cleanup()
			if cmd.Flags().Changed("control-addr") {
				cfg.ControlAddr = controlAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := newApp(ctx, cfg, cmd.OutOrStdout())
			if cfg.InfluxURL != "" {
				go metrics.StartInfluxPusher(ctx, cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
			}
			if cfg.ControlEnabled {
				startControl(ctx, a)
			}
			go a.poller.Start(ctx)

			<-ctx.Done()
			logging.Get().Info().Msg("shutdown signal received, waiting for active checks to complete")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.shutdown(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().StringVar(&controlAddr, "control-addr", ":8088", "listen address of the control API")
	return cmd
}

func startControl(ctx context.Context, a *app) {
	limit := rate.Limit(a.cfg.CheckRatePerSec)
	if a.cfg.CheckRatePerSec <= 0 {
		limit = rate.Inf
	}
	handler := control.NewHandler(control.Deps{
		Poller:       a.poller,
		Toasts:       a.toasts,
		Page:         a.doc,
		Journal:      a.journal,
		CheckLimiter: rate.NewLimiter(limit, a.cfg.CheckBurst),
		Metrics:      a.cfg.MetricsEnabled,
	})
	router := control.SetupRouter(handler)
	go func() {
		if err := control.Serve(ctx, a.cfg.ControlAddr, router); err != nil {
			logging.Get().Error().Err(err).Str("addr", a.cfg.ControlAddr).Msg("control API stopped")
		}
	}()
}

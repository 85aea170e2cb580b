package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single poll cycle and exit",
		Long: `Runs one poll cycle right away: pending responses are fetched, synchronized
and printed as toasts. Exits non-zero when the pending list could not be fetched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := prepare(cmd, f)
			if err != nil {
				return err
			}
			defer cleanup()
			cfg.ConsoleToasts = true

			ctx := cmd.Context()
			a := newApp(ctx, cfg, cmd.OutOrStdout())
			a.poller.CheckOnce(ctx)
			st := a.poller.Status()

			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.shutdown(waitCtx)

			if st.RetryCount > 0 {
				return errors.New("failed to fetch pending responses")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "check complete")
			return nil
		},
	}
}

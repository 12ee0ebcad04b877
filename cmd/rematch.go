package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rematchCmd = &cobra.Command{
	Use:   "rematch",
	Short: "Recompute matches for every active listing and request",
	Long:  "Recomputes and persists matches for all active entities, for example after changing scoring weights.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := svc.RematchAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rematched %d listings and %d requests: %d matches persisted.\n",
			sum.Listings, sum.Requests, sum.Matches)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rematchCmd)
}

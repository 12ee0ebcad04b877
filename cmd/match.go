package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Recompute matches for one stored listing or request",
}

var matchListingCmd = &cobra.Command{
	Use:   "listing <listing-id>",
	Short: "Rank active requests against a listing and persist the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatch(cmd, model.SideListing, args[0])
	},
}

var matchRequestCmd = &cobra.Command{
	Use:   "request <request-id>",
	Short: "Rank active listings against a request and persist the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatch(cmd, model.SideRequest, args[0])
	},
}

func init() {
	matchCmd.AddCommand(matchListingCmd)
	matchCmd.AddCommand(matchRequestCmd)
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, side model.Side, id string) error {
	ctx := cmd.Context()

	svc, st, err := initService(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	var matches []model.Match
	if side == model.SideListing {
		matches, err = svc.RematchListing(ctx, id)
	} else {
		matches, err = svc.RematchRequest(ctx, id)
	}
	if err != nil {
		return err
	}

	formatMatchesList(cmd.OutOrStdout(), matches)
	return nil
}

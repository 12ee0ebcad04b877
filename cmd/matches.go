package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/export"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Inspect and export persisted matches",
}

// -- matches list --

var matchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted matches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := matchFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := st.ListMatches(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "matches list")
		}
		if len(matches) == 0 {
			fmt.Fprintln(os.Stderr, "No matches found.")
			return nil
		}
		formatMatchesList(cmd.OutOrStdout(), matches)
		return nil
	},
}

// -- matches export --

var matchesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export persisted matches as CSV or XLSX",
	Long: `Export persisted matches with their explanation lines.

Examples:
  # All current matches for one listing as CSV on stdout
  matches export --side listing --id 3f2a... --format csv

  # Full history as a workbook
  matches export --all --format xlsx --output matches.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		outputPath, _ := cmd.Flags().GetString("output")
		if format != "csv" && format != "xlsx" {
			return eris.Errorf("matches export: --format must be csv or xlsx (got %q)", format)
		}
		if format == "xlsx" && outputPath == "" {
			return eris.New("matches export: --output is required for xlsx")
		}

		filter, err := matchFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := st.ListMatches(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "matches export")
		}

		var out io.Writer = cmd.OutOrStdout()
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return eris.Wrap(err, "matches export: create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if format == "xlsx" {
			err = export.WriteXLSX(out, matches)
		} else {
			err = export.WriteCSV(out, matches)
		}
		if err != nil {
			return err
		}

		if outputPath != "" {
			fmt.Fprintf(os.Stderr, "Exported %d matches to %s\n", len(matches), outputPath)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{matchesListCmd, matchesExportCmd} {
		c.Flags().String("side", "", "anchor side: listing or request")
		c.Flags().String("id", "", "anchor entity id (requires --side)")
		c.Flags().Bool("all", false, "include superseded matches")
		c.Flags().Int("limit", 100, "max number of matches")
	}
	matchesExportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	matchesExportCmd.Flags().String("output", "", "output file path (default: stdout, required for xlsx)")

	matchesCmd.AddCommand(matchesListCmd)
	matchesCmd.AddCommand(matchesExportCmd)
	rootCmd.AddCommand(matchesCmd)
}

func matchFilterFromFlags(cmd *cobra.Command) (store.MatchFilter, error) {
	side, _ := cmd.Flags().GetString("side")
	id, _ := cmd.Flags().GetString("id")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	switch model.Side(side) {
	case "", model.SideListing, model.SideRequest:
	default:
		return store.MatchFilter{}, eris.Errorf("--side must be listing or request (got %q)", side)
	}
	if id != "" && side == "" {
		return store.MatchFilter{}, eris.New("--id requires --side")
	}
	return store.MatchFilter{
		Side:              model.Side(side),
		EntityID:          id,
		IncludeSuperseded: all,
		Limit:             limit,
	}, nil
}

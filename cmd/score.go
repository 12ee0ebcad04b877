package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one listing against one request",
	Long: `Score a single listing/request pair read from JSON files without touching the store.

Examples:
  # Human-readable breakdown
  score --listing listing.json --request request.json

  # Raw result as JSON
  score --listing listing.json --request request.json --format json`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("listing", "", "path to listing JSON (- for stdin)")
	f.String("request", "", "path to request JSON (- for stdin)")
	f.String("format", "text", "output format: text or json")
	_ = scoreCmd.MarkFlagRequired("listing")
	_ = scoreCmd.MarkFlagRequired("request")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	listingPath, _ := cmd.Flags().GetString("listing")
	requestPath, _ := cmd.Flags().GetString("request")
	format, _ := cmd.Flags().GetString("format")

	if format != "text" && format != "json" {
		return eris.Errorf("score: --format must be text or json (got %q)", format)
	}
	if listingPath == "-" && requestPath == "-" {
		return eris.New("score: only one of --listing and --request can read stdin")
	}

	mc, err := matchConfig(cfg.Match)
	if err != nil {
		return err
	}

	l, err := readJSON[model.Listing](listingPath, cmd.InOrStdin())
	if err != nil {
		return eris.Wrap(err, "score: listing")
	}
	r, err := readJSON[model.Request](requestPath, cmd.InOrStdin())
	if err != nil {
		return eris.Wrap(err, "score: request")
	}

	res, err := matcher.NewScorer(mc).Score(l, r)
	if err != nil {
		return err
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printScore(cmd.OutOrStdout(), res, mc.MinScore)
	return nil
}

// printScore writes a score and its explanation lines.
func printScore(out io.Writer, res matcher.Result, minScore int) {
	verdict := "below threshold"
	if res.Score >= minScore {
		verdict = "would be persisted"
	}
	_, _ = fmt.Fprintf(out, "Score: %d/100 (%s, threshold %d)\n", res.Score, verdict, minScore)
	for _, line := range matcher.FormatReasons(res.Reasons) {
		_, _ = fmt.Fprintf(out, "  - %s\n", line)
	}
}


package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
)

// formatMatchesList writes a tabular list of matches to out.
func formatMatchesList(out io.Writer, matches []model.Match) {
	if len(matches) == 0 {
		_, _ = fmt.Fprintln(out, "No matches at or above the threshold.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LISTING\tREQUEST\tSCORE\tCURRENT\tREASONS")
	_, _ = fmt.Fprintln(w, "-------\t-------\t-----\t-------\t-------")
	for _, m := range matches {
		current := "yes"
		if m.SupersededAt != nil {
			current = "no"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateID(m.ListingID),
			truncateID(m.RequestID),
			m.Score,
			current,
			strings.Join(matcher.FormatReasons(m.Reasons), "; "),
		)
	}
	_ = w.Flush()
}

// formatListingsList writes a tabular list of listings to out.
func formatListingsList(out io.Writer, listings []model.Listing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tLAYOUT\tCITY\tPRICE\tAREA\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t----\t-----\t----\t------\t-------")
	for _, l := range listings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			l.Type,
			dash(l.Layout),
			cityLabel(l.City, l.District),
			optNumber(l.Price),
			optNumber(l.AreaM2),
			l.Status,
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRequestsList writes a tabular list of requests to out.
func formatRequestsList(out io.Writer, requests []model.Request) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tLAYOUT_MIN\tCITY\tBUDGET_MAX\tAREA_MIN\tRADIUS\tSTATUS")
	_, _ = fmt.Fprintln(w, "--\t----\t----------\t----\t----------\t--------\t------\t------")
	for _, r := range requests {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Type,
			dash(r.LayoutMin),
			cityLabel(r.City, r.District),
			optNumber(r.BudgetMax),
			optNumber(r.AreaMinM2),
			fmt.Sprintf("%g km", r.Radius(model.DefaultRadiusKM)),
			r.Status,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optNumber(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func cityLabel(city, district string) string {
	if district == "" {
		return city
	}
	return city + " / " + district
}

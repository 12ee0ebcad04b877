package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
)

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Manage property listings",
	Long:  "Add, update, archive and inspect listings. Adding or updating a listing recomputes its matches.",
}

// -- listing add --

var listingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a listing from a JSON file and match it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		l, err := readJSON[model.Listing](path, cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "listing add")
		}
		l.ID, l.Status = "", ""

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := svc.SubmitListing(ctx, &l)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Listing %s created.\n", l.ID)
		formatMatchesList(cmd.OutOrStdout(), matches)
		return nil
	},
}

// -- listing update --

var listingUpdateCmd = &cobra.Command{
	Use:   "update <listing-id>",
	Short: "Replace a listing's attributes and rematch it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		l, err := readJSON[model.Listing](path, cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "listing update")
		}
		l.ID = args[0]

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := svc.UpdateListing(ctx, &l)
		if err != nil {
			return err
		}
		formatMatchesList(cmd.OutOrStdout(), matches)
		return nil
	},
}

// -- listing archive --

var listingArchiveCmd = &cobra.Command{
	Use:   "archive <listing-id>",
	Short: "Archive a listing and supersede its matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := svc.ArchiveListing(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Listing %s archived.\n", args[0])
		return nil
	},
}

// -- listing list --

var listingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List listings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := entityFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		listings, err := st.ListListings(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "listing list")
		}
		if len(listings) == 0 {
			fmt.Fprintln(os.Stderr, "No listings found.")
			return nil
		}
		formatListingsList(cmd.OutOrStdout(), listings)
		return nil
	},
}

// -- listing show --

var listingShowCmd = &cobra.Command{
	Use:   "show <listing-id>",
	Short: "Show a listing as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		l, err := st.GetListing(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "listing show")
		}
		return writeJSON(cmd.OutOrStdout(), l)
	},
}

func init() {
	listingAddCmd.Flags().String("file", "-", "listing JSON file (- for stdin)")
	listingUpdateCmd.Flags().String("file", "-", "listing JSON file (- for stdin)")
	addEntityFilterFlags(listingListCmd)

	listingCmd.AddCommand(listingAddCmd)
	listingCmd.AddCommand(listingUpdateCmd)
	listingCmd.AddCommand(listingArchiveCmd)
	listingCmd.AddCommand(listingListCmd)
	listingCmd.AddCommand(listingShowCmd)
	rootCmd.AddCommand(listingCmd)
}

func addEntityFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "active", "filter by status (active, archived, or empty for all)")
	cmd.Flags().String("type", "", "filter by property type (apartment, house, land)")
	cmd.Flags().Int("limit", 50, "max number of rows to display (0 for all)")
	cmd.Flags().Int("offset", 0, "rows to skip")
}

func entityFilterFromFlags(cmd *cobra.Command) (store.EntityFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	typ, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	switch model.Status(status) {
	case "", model.StatusActive, model.StatusArchived:
	default:
		return store.EntityFilter{}, eris.Errorf("--status must be active or archived (got %q)", status)
	}
	if typ != "" && !model.PropertyType(typ).Valid() {
		return store.EntityFilter{}, eris.Errorf("--type must be apartment, house or land (got %q)", typ)
	}
	return store.EntityFilter{
		Status: model.Status(status),
		Type:   model.PropertyType(typ),
		Limit:  limit,
		Offset: offset,
	}, nil
}

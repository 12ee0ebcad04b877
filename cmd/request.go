package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/model"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Manage buyer and tenant requests",
	Long:  "Add, update, archive and inspect requests. Adding or updating a request recomputes its matches.",
}

// -- request add --

var requestAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a request from a JSON file and match it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		r, err := readJSON[model.Request](path, cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "request add")
		}
		r.ID, r.Status = "", ""

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := svc.SubmitRequest(ctx, &r)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Request %s created.\n", r.ID)
		formatMatchesList(cmd.OutOrStdout(), matches)
		return nil
	},
}

// -- request update --

var requestUpdateCmd = &cobra.Command{
	Use:   "update <request-id>",
	Short: "Replace a request's attributes and rematch it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		r, err := readJSON[model.Request](path, cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "request update")
		}
		r.ID = args[0]

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		matches, err := svc.UpdateRequest(ctx, &r)
		if err != nil {
			return err
		}
		formatMatchesList(cmd.OutOrStdout(), matches)
		return nil
	},
}

// -- request archive --

var requestArchiveCmd = &cobra.Command{
	Use:   "archive <request-id>",
	Short: "Archive a request and supersede its matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := svc.ArchiveRequest(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Request %s archived.\n", args[0])
		return nil
	},
}

// -- request list --

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests",
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
		requests, err := st.ListRequests(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "request list")
		}
		if len(requests) == 0 {
			fmt.Fprintln(os.Stderr, "No requests found.")
			return nil
		}
		formatRequestsList(cmd.OutOrStdout(), requests)
		return nil
	},
}

// -- request show --

var requestShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a request as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := st.GetRequest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "request show")
		}
		return writeJSON(cmd.OutOrStdout(), r)
	},
}

func init() {
	requestAddCmd.Flags().String("file", "-", "request JSON file (- for stdin)")
	requestUpdateCmd.Flags().String("file", "-", "request JSON file (- for stdin)")
	addEntityFilterFlags(requestListCmd)

	requestCmd.AddCommand(requestAddCmd)
	requestCmd.AddCommand(requestUpdateCmd)
	requestCmd.AddCommand(requestArchiveCmd)
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestShowCmd)
	rootCmd.AddCommand(requestCmd)
}

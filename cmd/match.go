package main

import (
	"context"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blueoctober14/RightImpact/internal/match"
)

var (
	matchListID     int64
	matchUserIDs    []int64
	matchListIDs    []int64
	matchContactIDs []int64
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match source contacts against target lists",
}

var matchContactCmd = &cobra.Command{
	Use:   "contact <source-contact-id>",
	Short: "Match one source contact against one or all target lists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid source contact id %q", args[0])
		}
		var listID *int64
		if cmd.Flags().Changed("list") {
			listID = &matchListID
		}
		return withMatcher(cmd, func(ctx context.Context, m *match.Matcher) error {
			return runMatchContact(ctx, m, cmd.OutOrStdout(), id, listID)
		})
	},
}

var matchNewContactsCmd = &cobra.Command{
	Use:   "new-contacts",
	Short: "Match unmatched source contacts, optionally limited to users or contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMatcher(cmd, func(ctx context.Context, m *match.Matcher) error {
			return runMatchNewContacts(ctx, m, cmd.OutOrStdout(), matchContactIDs, matchUserIDs, matchListIDs)
		})
	},
}

var matchListCmd = &cobra.Command{
	Use:   "list <target-list-id>",
	Short: "Match every source contact not yet matched in a target list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid target list id %q", args[0])
		}
		return withMatcher(cmd, func(ctx context.Context, m *match.Matcher) error {
			return writeOutput(cmd.OutOrStdout(), outputFormat, m.MatchNewTargetList(ctx, id))
		})
	},
}

func init() {
	matchCmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	matchContactCmd.Flags().Int64Var(&matchListID, "list", 0, "only match against this target list")
	matchNewContactsCmd.Flags().Int64SliceVar(&matchContactIDs, "contact-id", nil, "source contact ids to match (default: all unmatched)")
	matchNewContactsCmd.Flags().Int64SliceVar(&matchUserIDs, "user-id", nil, "only contacts shared by these users")
	matchNewContactsCmd.Flags().Int64SliceVar(&matchListIDs, "list-id", nil, "only match against these target lists")

	matchCmd.AddCommand(matchContactCmd, matchNewContactsCmd, matchListCmd)
	rootCmd.AddCommand(matchCmd)
}

// withMatcher opens the store, builds a Matcher and runs fn until it
// returns or the process is interrupted.
func withMatcher(cmd *cobra.Command, fn func(ctx context.Context, m *match.Matcher) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	return fn(ctx, newMatcher(st, nil))
}

func runMatchContact(ctx context.Context, m *match.Matcher, w io.Writer, id int64, listID *int64) error {
	res, err := m.MatchContactToLists(ctx, id, listID)
	if err != nil {
		return err
	}
	return writeOutput(w, outputFormat, res)
}

func runMatchNewContacts(ctx context.Context, m *match.Matcher, w io.Writer, contactIDs, userIDs, listIDs []int64) error {
	if len(contactIDs) > 0 {
		return writeOutput(w, outputFormat, m.MatchNewSourceContacts(ctx, contactIDs, listIDs))
	}
	return writeOutput(w, outputFormat, m.MatchUnmatchedContacts(ctx, userIDs, listIDs))
}

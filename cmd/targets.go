package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/store"
)

var (
	pruneVoterIDs []string
	pruneListID   int64
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Maintain target contacts",
}

var targetsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete target contacts by voter id along with their matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(pruneVoterIDs) == 0 {
			return eris.New("at least one --voter-id is required")
		}
		var listID *int64
		if cmd.Flags().Changed("list") {
			listID = &pruneListID
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runPrune(cmd.Context(), st, cmd.OutOrStdout(), pruneVoterIDs, listID)
	},
}

func init() {
	targetsPruneCmd.Flags().StringSliceVar(&pruneVoterIDs, "voter-id", nil, "voter ids to delete (repeatable or comma-separated)")
	targetsPruneCmd.Flags().Int64Var(&pruneListID, "list", 0, "only delete from this target list")
	targetsPruneCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")

	targetsCmd.AddCommand(targetsPruneCmd)
	rootCmd.AddCommand(targetsCmd)
}

func runPrune(ctx context.Context, st store.Store, w io.Writer, voterIDs []string, listID *int64) error {
	n, err := st.DeleteTargetContactsByVoterIDs(ctx, voterIDs, listID)
	if err != nil {
		return eris.Wrap(err, "prune target contacts")
	}
	zap.L().Info("pruned target contacts", zap.Int("deleted", n), zap.Int("requested", len(voterIDs)))
	return writeOutput(w, outputFormat, map[string]any{
		"requested": len(voterIDs),
		"deleted":   n,
	})
}

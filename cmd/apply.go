package cmd

import (
	"context"

	"github.com/aksharjobs/matchscore/internal/matching"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Score a formal application and record its status",
	Run: func(cmd *cobra.Command, _ []string) {
		apply(cmd)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	addPairFlags(applyCmd)
	applyCmd.Flags().StringP("status", "s", matching.StatusApplied, "status of the application")
}

func apply(cmd *cobra.Command) {
	ctx := context.Background()
	userID, jobID := pairFlags(cmd)
	status, _ := cmd.Flags().GetString("status")

	e := setup(ctx)
	if e == nil {
		return
	}
	defer e.close(ctx)

	outcome, err := e.orchestrator.ProcessApplication(ctx, userID, jobID, status)
	if err != nil {
		fatal(ctx, e, "processing the application", err)
		return
	}

	e.logger.Info("application processed",
		zap.String("application_id", outcome.ApplicationID),
		zap.Bool("cached", outcome.Cached),
	)
	printJSON(ctx, e, outcome)
}

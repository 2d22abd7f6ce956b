package cmd

import (
	"context"

	"github.com/aksharjobs/matchscore/internal/matching"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Update the status of an application",
	Run: func(cmd *cobra.Command, _ []string) {
		status(cmd)
	},
}

// statuses offered by the interactive prompt.
var statuses = []string{
	matching.StatusPending,
	matching.StatusApplied,
	"Shortlisted",
	"Interview",
	"Offered",
	"Hired",
	"Rejected",
}

func init() {
	rootCmd.AddCommand(statusCmd)

	addPairFlags(statusCmd)
	statusCmd.Flags().StringP("status", "s", "", "new status; asked interactively when empty")
	statusCmd.Flags().String("interview-date", "", "interview date")
	statusCmd.Flags().String("interview-mode", "", "interview mode, e.g. online or onsite")
}

func status(cmd *cobra.Command) {
	ctx := context.Background()
	userID, jobID := pairFlags(cmd)
	newStatus, _ := cmd.Flags().GetString("status")
	interviewDate, _ := cmd.Flags().GetString("interview-date")
	interviewMode, _ := cmd.Flags().GetString("interview-mode")

	e := setup(ctx)
	if e == nil {
		return
	}
	defer e.close(ctx)

	if newStatus == "" {
		prompt := promptui.Select{
			Label: "Choose a status and press ENTER",
			Items: statuses,
		}

		var err error
		if _, newStatus, err = prompt.Run(); err != nil {
			e.fail(ctx, 1, "exiting", zap.Error(err))
			return
		}
	}

	if err := e.orchestrator.UpdateApplicationStatus(ctx, userID, jobID, newStatus, interviewDate, interviewMode); err != nil {
		fatal(ctx, e, "updating the application status", err)
		return
	}

	printJSON(ctx, e, map[string]string{
		"userId": userID,
		"jobId":  jobID,
		"status": newStatus,
	})
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aksharjobs/matchscore/internal/matching"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a job for a browsing candidate",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	addPairFlags(scoreCmd)
}

func score(cmd *cobra.Command) {
	ctx := context.Background()
	userID, jobID := pairFlags(cmd)

	e := setup(ctx)
	if e == nil {
		return
	}
	defer e.close(ctx)

	result, err := e.orchestrator.GetMatchScore(ctx, userID, jobID)
	if err != nil {
		fatal(ctx, e, "scoring the match", err)
		return
	}

	printJSON(ctx, e, result)
}

func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("user", "u", "", "id of the candidate")
	cmd.Flags().String("job", "", "id of the job posting")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("job")
}

func pairFlags(cmd *cobra.Command) (string, string) {
	userID, _ := cmd.Flags().GetString("user")
	jobID, _ := cmd.Flags().GetString("job")
	return userID, jobID
}

// fatal exits with a code that tells not-found conditions apart from failures.
func fatal(ctx context.Context, e *env, msg string, err error) {
	code := 1
	if matching.IsNotFound(err) {
		code = 2
	}
	e.fail(ctx, code, msg, zap.Error(err))
}

func printJSON(ctx context.Context, e *env, v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		e.fail(ctx, 1, "encoding the result", zap.Error(err))
		return
	}
	fmt.Println(string(pretty))
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldworks/jobflow/internal/application/usecase/workflow"
	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// newTransitionCmd moves one or more jobs to a new phase
func newTransitionCmd(flags *globalFlags) *cobra.Command {
	var (
		toPhase string
		actor   string
		roles   []string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "transition <job-id> [job-id...]",
		Short: "Move jobs to a new phase",
		Long: `Move one or more jobs to a new phase. The transition is validated
against the phase graph, the actor's roles, required fields and the
business rules; rejections are reported per job and recorded in the
ledger. With several job IDs the batch continues past rejections.`,
		Args: cobra.MinimumNArgs(1),
		Example: `  jobflow transition 4f8d... --to Estimation --actor alice
  jobflow transition 4f8d... 9c2a... --to Cancelled --actor bob --comment "client withdrew"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			uc := c.GetUseCase()
			to := phase.Name(toPhase)

			if len(args) == 1 {
				result, err := uc.ExecuteTransition(cmd.Context(), workflow.TransitionRequest{
					JobID:      args[0],
					ToPhase:    to,
					Actor:      actor,
					ActorRoles: model.RolesFromStrings(roles),
					Comment:    comment,
				})
				if err != nil {
					return err
				}
				return printTransitionResult(cmd, flags, args[0], result)
			}

			results, err := uc.BulkTransition(cmd.Context(), args, to, actor, comment)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), results)
			}
			for _, item := range results {
				if item.Err != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %s\n", item.JobID, item.Err)
					continue
				}
				printTransitionResult(cmd, flags, item.JobID, item.Result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&toPhase, "to", "", "target phase")
	cmd.Flags().StringVar(&actor, "actor", "", "acting user")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "actor role (repeatable; default: resolved from role assignments)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded in the ledger")
	cmd.MarkFlagRequired("to")

	return cmd
}

func printTransitionResult(cmd *cobra.Command, flags *globalFlags, jobID string, result *workflow.TransitionResult) error {
	if flags.jsonOutput {
		return printJSON(cmd.OutOrStdout(), result)
	}
	if result.Status == workflow.StatusSuccess {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", jobID, result.FromPhase, result.NewPhase)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: rejected (%s): %s\n", jobID, result.Kind, result.Message)
	if len(result.MissingFields) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  missing fields: %s\n", strings.Join(result.MissingFields, ", "))
	}
	return nil
}

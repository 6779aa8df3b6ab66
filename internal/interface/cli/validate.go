package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// newValidateCmd dry-runs a transition without changing anything
func newValidateCmd(flags *globalFlags) *cobra.Command {
	var (
		toPhase string
		actor   string
		roles   []string
	)

	cmd := &cobra.Command{
		Use:   "validate <job-id>",
		Short: "Check whether a transition would be allowed",
		Long: `Run the full validation pipeline for a transition without moving the
job, appending history or triggering side effects. Safe to call any
number of times.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			verdict, err := c.GetUseCase().ValidateTransition(
				cmd.Context(), args[0], phase.Name(toPhase), actor, model.RolesFromStrings(roles))
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), verdict)
			}
			if verdict.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "transition to %s is allowed\n", toPhase)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transition to %s would be rejected (%s): %s\n", toPhase, verdict.Kind, verdict.Message)
			if len(verdict.MissingFields) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  missing fields: %s\n", strings.Join(verdict.MissingFields, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&toPhase, "to", "", "target phase")
	cmd.Flags().StringVar(&actor, "actor", "", "acting user")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "actor role (repeatable)")
	cmd.MarkFlagRequired("to")

	return cmd
}

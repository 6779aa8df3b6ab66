package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newInfoCmd shows a job's position in the workflow
func newInfoCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <job-id>",
		Short: "Show a job's workflow position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.GetUseCase().GetWorkflowInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:            %s\n", info.JobID)
			fmt.Fprintf(out, "Phase:          %s\n", info.CurrentPhase)
			fmt.Fprintf(out, "In phase since: %s\n", info.PhaseStartedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Progress:       %.0f%%\n", info.Progress*100)
			if info.Cancelled && info.CancelledFrom != nil {
				fmt.Fprintf(out, "Cancelled from: %s\n", *info.CancelledFrom)
			}
			next := make([]string, 0, len(info.ValidNextPhases))
			for _, p := range info.ValidNextPhases {
				next = append(next, p.String())
			}
			fmt.Fprintf(out, "Next phases:    %s\n", strings.Join(next, ", "))
			return nil
		},
	}
	return cmd
}

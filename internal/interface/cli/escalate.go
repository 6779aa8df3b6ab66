package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newEscalateCmd sweeps active jobs for overdue phases. Meant to run from
// cron; in-process timers cover long-running deployments.
func newEscalateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalate",
		Short: "Check active jobs for overdue phases and notify",
		Long: `Check every active job against its phase's escalation timeout. Jobs
past the timeout get an escalation ledger entry and a notification to
the configured roles, once per phase stay. Escalation never moves a
job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			count, err := c.GetEscalationMonitor().Sweep(cmd.Context())
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]int{"escalated": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "escalated %d job(s)\n", count)
			return nil
		},
	}
	return cmd
}

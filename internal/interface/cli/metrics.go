package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newMetricsCmd prints aggregate workflow metrics from the ledger
func newMetricsCmd(flags *globalFlags) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show workflow metrics computed from the ledger",
		Long: `Show average time per phase, completion rate and bottleneck phases,
computed from the transition ledger. --since limits the window; zero
covers the full ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().UTC().Add(-since)
			}

			m, err := c.GetMetricsService().GetMetrics(cmd.Context(), from)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), m)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Jobs:            %d (%d completed, %.0f%%)\n",
				m.TotalJobs, m.CompletedJobs, m.CompletionRate*100)
			if len(m.BottleneckPhases) > 0 {
				fmt.Fprintln(out, "Slowest phases:")
				for _, b := range m.BottleneckPhases {
					fmt.Fprintf(out, "  %-16s %.1fh\n", b.Phase, b.AvgHours)
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only count entries newer than this (e.g. 720h)")

	return cmd
}

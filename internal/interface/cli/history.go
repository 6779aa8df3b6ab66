package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newHistoryCmd prints a job's transition ledger
func newHistoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <job-id>",
		Short: "Show a job's transition ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.GetUseCase().GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				type jsonEntry struct {
					ID        string    `json:"id"`
					FromPhase string    `json:"from_phase,omitempty"`
					ToPhase   string    `json:"to_phase"`
					Actor     string    `json:"actor"`
					Outcome   string    `json:"outcome"`
					Kind      string    `json:"kind"`
					Reason    string    `json:"reason,omitempty"`
					Comment   string    `json:"comment,omitempty"`
					Timestamp time.Time `json:"timestamp"`
				}
				out := make([]jsonEntry, 0, len(entries))
				for _, e := range entries {
					je := jsonEntry{
						ID:        e.ID(),
						ToPhase:   e.ToPhase().String(),
						Actor:     e.Actor(),
						Outcome:   e.Outcome().String(),
						Kind:      string(e.Classify(c.GetRegistry())),
						Reason:    e.Reason(),
						Comment:   e.Comment(),
						Timestamp: e.Timestamp(),
					}
					if from := e.FromPhase(); from != nil {
						je.FromPhase = from.String()
					}
					out = append(out, je)
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			for _, e := range entries {
				from := "-"
				if f := e.FromPhase(); f != nil {
					from = f.String()
				}
				line := fmt.Sprintf("%s  %-10s %-12s %s -> %s",
					e.Timestamp().Format(time.RFC3339), e.Outcome(), e.Classify(c.GetRegistry()), from, e.ToPhase())
				if e.Actor() != "" {
					line += fmt.Sprintf("  by %s", e.Actor())
				}
				if e.Reason() != "" {
					line += fmt.Sprintf("  (%s)", e.Reason())
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	return cmd
}

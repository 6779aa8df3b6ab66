package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newCreateCmd creates a job in the workflow's initial phase
func newCreateCmd(flags *globalFlags) *cobra.Command {
	var (
		actor  string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job in the initial phase",
		Example: `  jobflow create --actor alice --field customer=Acme --field priority=Urgent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Close()

			fieldValues, err := parseFields(fields)
			if err != nil {
				return err
			}

			j, err := c.GetUseCase().CreateJob(cmd.Context(), fieldValues, actor)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"job_id": j.ID().String(),
					"phase":  j.CurrentPhase().String(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created job %s in phase %s\n", j.ID(), j.CurrentPhase())
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting user")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "job field as key=value (repeatable)")

	return cmd
}

// parseFields turns repeated key=value flags into a field map
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", pair)
		}
		fields[key] = value
	}
	return fields, nil
}

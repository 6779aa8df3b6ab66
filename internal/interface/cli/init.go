package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fieldworks/jobflow/internal/workflow"
)

// newInitCmd writes the built-in workflow definition to a file so it can
// be customized
func newInitCmd(flags *globalFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in workflow definition to a YAML file",
		Long: `Write the built-in job order workflow (phases, transitions, roles,
rules and escalations) to a YAML file. Edit the file and pass it back
with --workflow to run a customized workflow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			if exists, _ := afero.Exists(fs, out); exists {
				return fmt.Errorf("%s already exists", out)
			}
			if err := workflow.Save(fs, out, workflow.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "workflow.yaml", "output file path")

	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fieldworks/jobflow/internal/infrastructure/di"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	dbPath       string
	workflowPath string
	archiveType  string
	jsonOutput   bool
}

// NewRootCmd builds the jobflow command tree. Each invocation builds its
// container lazily so flag parsing happens before the database opens.
func NewRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "jobflow",
		Short:         "Job order workflow engine",
		Long:          "jobflow moves job orders through a configurable phase workflow with rule validation, role checks and an append-only audit ledger.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to the SQLite database (default ~/.jobflow/jobflow.db)")
	rootCmd.PersistentFlags().StringVar(&flags.workflowPath, "workflow", "", "path to a workflow YAML definition (default: built-in job order workflow)")
	rootCmd.PersistentFlags().StringVar(&flags.archiveType, "archive", "", "archive storage: local, s3 or mock")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "emit JSON output")

	rootCmd.AddCommand(
		newInitCmd(flags),
		newCreateCmd(flags),
		newTransitionCmd(flags),
		newValidateCmd(flags),
		newInfoCmd(flags),
		newHistoryCmd(flags),
		newMetricsCmd(flags),
		newEscalateCmd(flags),
	)

	return rootCmd
}

// buildContainer wires the engine for one command invocation. The caller
// must Close it.
func buildContainer(cmd *cobra.Command, flags *globalFlags) (*di.Container, error) {
	return di.NewContainer(di.Config{
		DBPath:       flags.dbPath,
		WorkflowPath: flags.workflowPath,
		ArchiveType:  flags.archiveType,
		OutputWriter: cmd.OutOrStdout(),
	})
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the CLI and returns the process exit code
func Execute(version string) int {
	rootCmd := NewRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

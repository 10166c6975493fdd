package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and every subcommand.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	c := &command{global: globalFlags}

	root.AddCommand(
		createServeCommand(globalFlags),
		createGreetCommand(c),
		createCheckCommand(c),
		createInstallCommand(c),
		createInstallBrowsersCommand(c),
		createRecordCommand(c),
		createStatusCommand(c),
		createStopCommand(c),
		createListCommand(c),
		createOpenCommand(c),
		createHistoryCommand(c),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowcap",
		Short: "Record Figma prototype flows",
		Long: `flowcap checks the recording toolchain, runs the Figma flow recorder and
serves a local HTTP bridge for the desktop UI.

Examples:
  flowcap check --full
  flowcap record --url=https://www.figma.com/proto/abc --duration=30
  flowcap serve                                   # Start the bridge
  flowcap status SESSION --api-url=http://127.0.0.1:7878/api`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (e.g. http://127.0.0.1:7878/api); local commands run in-process when empty")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 0, "request timeout (default 30s, 10m for installs)")
	return root
}

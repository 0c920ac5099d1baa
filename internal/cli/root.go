// Package cli implements the cobra-based CLI commands for release-packager.
//
// The root command runs the packaging pipeline; the verify and exclusions
// subcommands inspect an existing archive and the compiled exclusion rules.
// Each command is defined in its own file within this package. This file
// defines the root command, the global flags and the exit code handling.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-packager/internal/config"
	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
	"github.com/shinji-kodama/release-packager/internal/report"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// rootDir is the project root to package (--root).
	rootDir string

	// configFile is an explicit configuration file (--config). Empty means
	// the project root is searched for .packager.* files.
	configFile string

	// jsonOutput switches the final result to JSON on stdout. Progress
	// lines then go to stderr so stdout stays machine-readable.
	jsonOutput bool

	// verbosity is the number of -v flags. It selects the log level.
	verbosity int

	// noColor disables colored console output.
	noColor bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// Unlike a pure command group, the root command does work of its own:
// invoked without a subcommand it packages the project.
func NewRootCommand() *cobra.Command {
	flags := &packageFlags{}

	rootCmd := &cobra.Command{
		Use:   "release-packager",
		Short: "Package a project into a verified, timestamped ZIP archive",
		Long: `release-packager builds a deployable ZIP archive of a project tree.

It checks that every required directory exists, applies the exclusion
rules from .packageignore, adds placeholder runtime directories that deny
web access, and verifies the written archive before reporting success.

Examples:
  release-packager
  release-packager --root ./site --manifest
  release-packager --dry-run -v`,

		Args: cobra.NoArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// Errors are printed by Execute unless the reporter already did.
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Logging is configured once, before any command runs, so every
		// package logs through the same writer and level.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(os.Stderr, verbosity, noColor)
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(cmd, flags)
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root to package")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default: .packager.{yaml,yml,toml,jsonc,json} in the root)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output the result in JSON format")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Local flags only apply to the packaging run itself.
	rootCmd.Flags().BoolVar(&flags.manifest, "manifest", false, "Write a YAML manifest next to the archive")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Check and plan the archive without writing it")

	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewExclusionsCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// CLIError values carry their own exit code; other errors default to
// exit code 1. Errors the reporter has already shown are not printed again.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Reported {
			printError(cliErr.Message, cliErr.Err)
		}
		os.Exit(int(cliErr.Code))
	}

	// Generic error (e.g. a flag parse failure), exit with code 1.
	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode, because stdout is reserved
		// for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Commands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig builds the run configuration from the global flags.
func loadConfig() (config.Config, error) {
	return config.Load(config.LoadOptions{
		Root:       rootDir,
		ConfigFile: configFile,
	})
}

// newReporter creates the console reporter for cmd. In JSON mode progress
// goes to stderr so that stdout carries only the JSON document.
func newReporter(cmd *cobra.Command) report.Reporter {
	var out io.Writer = cmd.OutOrStdout()
	file := os.Stdout
	if jsonOutput {
		out = cmd.ErrOrStderr()
		file = os.Stderr
	}

	color := false
	// Only the real process streams can be terminals; a writer set by a
	// test never is.
	if f, ok := out.(*os.File); ok && f == file {
		color = report.ColorEnabled(f, noColor)
	}
	return report.NewTerminal(out, color)
}

// writeJSON prints v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to encode JSON output", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

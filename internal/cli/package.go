// Package cli - package.go implements the packaging run of the root command.
//
// The run loads the configuration, hands it to the pipeline, and prints
// the PackagingResult as JSON when --json is set. Progress lines and
// failure diagnostics are printed by the pipeline's reporter.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/pipeline"
)

// packageFlags holds the flag values local to the root command.
type packageFlags struct {
	// manifest writes a YAML manifest sidecar next to the archive.
	// It overrides write_manifest from the configuration when set.
	manifest bool

	// dryRun stops before anything is written to disk.
	dryRun bool
}

// runPackage is the main logic function for the root command.
func runPackage(cmd *cobra.Command, flags *packageFlags) error {
	logger := logging.GetLogger("cli")

	// Step 1: Load and validate the configuration.
	cfg, err := loadConfig()
	if err != nil {
		return err // Load already returns CLIError with ExitConfigInvalid
	}
	if flags.manifest {
		cfg = cfg.WithWriteManifest(true)
	}
	logger.Info().Str("root", cfg.Root()).Strs("sources", cfg.Sources()).Msg("Configuration ready")

	// Step 2: Run the pipeline. Diagnostics are printed as they happen.
	runner := pipeline.New(cfg, newReporter(cmd),
		pipeline.WithVersion(Version),
		pipeline.WithDryRun(flags.dryRun),
	)
	result, runErr := runner.Run()

	// Step 3: The JSON result is printed for failed runs too, so scripts
	// can see which stage was reached.
	if IsJSONOutput() {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
	}
	return runErr
}

// Package cli - verify.go implements the "release-packager verify" command.
//
// The verify command re-opens an existing archive, prints the build
// metadata stored in its comment, and checks it against the configured
// required directories with the same prefix test a packaging run uses.
// This lets a deployment double-check an archive that was copied around.
package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-packager/internal/archive"
	"github.com/shinji-kodama/release-packager/internal/model"
	"github.com/shinji-kodama/release-packager/internal/report"
	"github.com/shinji-kodama/release-packager/internal/verify"
)

// NewVerifyCommand creates the "verify" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an existing archive for the required directories",
		Long: `Check an existing archive against the required directories.

The required directories come from the configuration of the project
given by --root (the current directory by default).

Examples:
  release-packager verify releases/quality-system-2026-10-19_14-03-59.zip
  release-packager verify --json build.zip`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0])
		},
	}
	return cmd
}

// verifyResultJSON is the JSON output structure of the verify command.
type verifyResultJSON struct {
	Archive     string           `json:"archive"`
	Size        int64            `json:"size"`
	Entries     int              `json:"entries"`
	Verified    bool             `json:"verified"`
	Metadata    *metadataJSON    `json:"metadata,omitempty"`
	MetadataErr string           `json:"metadataError,omitempty"`
	Required    []model.DirCheck `json:"required"`
}

// metadataJSON mirrors archive.Metadata for JSON output.
type metadataJSON struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	Files     int            `json:"files"`
	Revision  model.Revision `json:"revision"`
}

// runVerify is the main logic function for the verify command.
func runVerify(cmd *cobra.Command, archivePath string) error {
	// Step 1: Load the configuration for the required directory list.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 2: Read the archive's central directory and comment.
	contents, err := archive.ReadManifest(archivePath)
	if err != nil {
		return model.WrapCLIError(model.ExitVerificationFailed,
			fmt.Sprintf("cannot read archive %s", archivePath), err)
	}

	// Step 3: Run the post-check.
	verifier := verify.New(cfg.Root(), model.ToRequiredDirectories(cfg.RequiredDirs()))
	checks := verifier.PostCheck(contents.Manifest)
	missing := model.MissingDirs(checks)

	// Step 4: Output results.
	if IsJSONOutput() {
		out := verifyResultJSON{
			Archive:  archivePath,
			Size:     contents.Size,
			Entries:  contents.Manifest.Len(),
			Verified: len(missing) == 0,
			Required: checks,
		}
		if contents.MetadataErr == nil {
			out.Metadata = &metadataJSON{
				Version:   contents.Metadata.Version,
				CreatedAt: contents.Metadata.CreatedAt,
				Files:     contents.Metadata.Files,
				Revision:  contents.Metadata.Revision,
			}
		} else {
			out.MetadataErr = contents.MetadataErr.Error()
		}
		if err := writeJSON(cmd, out); err != nil {
			return err
		}
	} else {
		printVerifyResultText(newReporter(cmd), archivePath, contents, checks)
	}

	if len(missing) > 0 {
		cliErr := model.NewCLIError(model.ExitVerificationFailed,
			fmt.Sprintf("archive is missing required directories: %s", FormatDirList(missing)))
		// The text report already lists every failed directory.
		if !IsJSONOutput() {
			cliErr.MarkReported()
		}
		return cliErr
	}
	return nil
}

// printVerifyResultText reports the metadata and every check.
func printVerifyResultText(rep report.Reporter, archivePath string, contents archive.Contents, checks []model.DirCheck) {
	rep.Heading("Archive " + archivePath)
	rep.Detail("Size: %s, %d entries", humanize.Bytes(uint64(contents.Size)), contents.Manifest.Len())

	if contents.MetadataErr != nil {
		rep.Warn("No build metadata: %v", contents.MetadataErr)
	} else {
		meta := contents.Metadata
		rep.Detail("Built by %s %s %s", archive.ToolName, meta.Version, humanize.Time(meta.CreatedAt))
		rep.Detail("Created: %s", meta.CreatedAt.Local().Format(time.RFC1123))
		rep.Detail("Files: %s", humanize.Comma(int64(meta.Files)))
		if !meta.Revision.IsZero() {
			rep.Detail("Revision: %s (%s)", meta.Revision.ShortCommit(), FormatBranch(meta.Revision))
		}
	}

	rep.Heading("Required directories")
	for _, check := range checks {
		if check.Found {
			rep.Success("%s", check.Dir)
		} else {
			rep.Error("%s: not in archive", check.Dir)
		}
	}
}

// FormatBranch renders the branch of a revision with a dirty marker.
//
// Example:
//
//	{Branch: "main"}              → "main"
//	{Branch: "main", Dirty: true} → "main, dirty"
//	{}                            → "-"
func FormatBranch(rev model.Revision) string {
	branch := rev.Branch
	if branch == "" {
		branch = "-"
	}
	if rev.Dirty {
		return branch + ", dirty"
	}
	return branch
}

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/shinji-kodama/release-packager/internal/archive"
	"github.com/shinji-kodama/release-packager/internal/config"
	"github.com/shinji-kodama/release-packager/internal/exclude"
	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
	"github.com/shinji-kodama/release-packager/internal/report"
	"github.com/shinji-kodama/release-packager/internal/vcs"
	"github.com/shinji-kodama/release-packager/internal/verify"
)

// RevisionSource resolves the version-control state of a directory.
// *vcs.Inspector is the production implementation.
type RevisionSource interface {
	Describe(path string) (model.Revision, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces time.Now as the source of the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRevisionSource replaces the git-based revision lookup.
func WithRevisionSource(src RevisionSource) Option {
	return func(r *Runner) { r.revisions = src }
}

// WithVersion sets the tool version recorded in the archive metadata.
func WithVersion(version string) Option {
	return func(r *Runner) { r.version = version }
}

// WithDryRun makes the run stop short of writing anything to disk.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// Runner executes packaging runs for one configuration.
type Runner struct {
	cfg       config.Config
	reporter  report.Reporter
	now       func() time.Time
	revisions RevisionSource
	version   string
	dryRun    bool
}

// New creates a Runner. Without options it uses the wall clock, git for
// revision information and "dev" as the version.
func New(cfg config.Config, reporter report.Reporter, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		reporter:  reporter,
		now:       time.Now,
		revisions: vcs.NewInspector(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one packaging run.
//
// The returned result is never nil and records the last stage reached,
// even when an error is returned. Errors are *model.CLIError values with
// Reported set.
func (r *Runner) Run() (*model.PackagingResult, error) {
	logger := logging.GetLogger("pipeline")
	done := logging.LogOperationStart(logger, "package")
	defer done()

	result := &model.PackagingResult{
		Stage:     model.StageInit,
		StartedAt: r.now(),
		DryRun:    r.dryRun,
	}

	err := r.run(result)
	logger.Debug().Str("stage", result.Stage.String()).Err(err).Msg("Run finished")
	return result, err
}

func (r *Runner) run(result *model.PackagingResult) error {
	verifier := verify.New(r.cfg.Root(), model.ToRequiredDirectories(r.cfg.RequiredDirs()))

	r.reporter.Heading(fmt.Sprintf("Packaging %s", r.cfg.NamePrefix()))
	r.reporter.Info("Project root: %s", r.cfg.Root())
	if r.dryRun {
		r.reporter.Warn("Dry run: nothing will be written")
	}

	// Step 1: Make sure every required directory exists before writing.
	if err := r.advance(result, model.StagePreVerify); err != nil {
		return err
	}
	if err := r.preVerify(verifier, result); err != nil {
		return err
	}

	// Step 2: Walk the tree and write the archive.
	if err := r.advance(result, model.StageBuild); err != nil {
		return err
	}
	manifest, synthetic, err := r.build(result)
	if err != nil {
		return err
	}

	// Step 3: Check the archive as written, not as intended.
	if err := r.advance(result, model.StagePostVerify); err != nil {
		return err
	}
	if err := r.postVerify(verifier, manifest, result); err != nil {
		return err
	}

	if err := r.advance(result, model.StageSuccess); err != nil {
		return err
	}

	// Step 4: Optional manifest sidecar, then the summary.
	if !r.dryRun && r.cfg.WriteManifest() {
		r.writeSidecar(result, manifest, synthetic)
	}
	r.summarize(result)
	return nil
}

// preVerify runs the on-disk check and reports every directory.
func (r *Runner) preVerify(verifier *verify.Verifier, result *model.PackagingResult) error {
	r.reporter.Heading("Checking required directories")

	result.PreChecks = verifier.PreCheck()
	for _, check := range result.PreChecks {
		if check.Found {
			r.reporter.Success("%s (%s)", check.Dir, english.Plural(check.FileCount, "file", ""))
		} else {
			r.reporter.Error("%s: not found", check.Dir)
		}
	}

	missing := model.MissingDirs(result.PreChecks)
	if len(missing) == 0 {
		return nil
	}

	if err := r.advance(result, model.StagePreFail); err != nil {
		return err
	}
	r.reporter.Error("%s missing, no archive written",
		english.Plural(len(missing), "required directory", "required directories"))
	return model.NewCLIError(
		model.ExitMissingSourceDir,
		fmt.Sprintf("missing required directories: %s", joinDirs(missing)),
	).MarkReported()
}

// build writes the archive, or plans it for a dry run, and returns the
// manifest to verify.
func (r *Runner) build(result *model.PackagingResult) (*model.Manifest, archive.Synthetic, error) {
	logger := logging.GetLogger("pipeline")

	synthetic := archive.Synthetic{
		Dirs:    r.cfg.RuntimeDirs(),
		Marker:  r.cfg.RuntimeMarker(),
		Content: r.cfg.RuntimeMarkerContent(),
	}

	matcher, found, err := exclude.Build(r.cfg.OutputDir(), r.cfg.ToolScripts(), r.cfg.IgnoreFilePath())
	if err != nil {
		r.reporter.Error("Cannot read %s: %v", r.cfg.IgnoreFile(), err)
		return nil, synthetic, model.WrapCLIError(model.ExitGeneralError, "failed to load exclusion rules", err).MarkReported()
	}

	r.reporter.Heading("Building archive")
	if found {
		r.reporter.Info("Loaded %s from %s", english.Plural(len(matcher.UserRules()), "exclusion rule", ""), r.cfg.IgnoreFile())
	} else {
		r.reporter.Info("No %s found, using built-in exclusions only", r.cfg.IgnoreFile())
	}

	rev, err := r.revisions.Describe(r.cfg.Root())
	switch {
	case err == nil:
		result.Revision = rev
		r.reporter.Info("Revision %s on %s%s", rev.ShortCommit(), rev.Branch, dirtySuffix(rev))
	case errors.Is(err, vcs.ErrNotRepository):
		logger.Debug().Msg("Project is not under version control")
	default:
		logger.Warn().Err(err).Msg("Could not read revision")
	}

	builder := archive.NewBuilder(r.cfg.Root(), matcher, synthetic)

	if r.dryRun {
		plan, err := builder.Plan()
		if err != nil {
			r.reporter.Error("Cannot walk project tree: %v", err)
			return nil, synthetic, model.WrapCLIError(model.ExitArchiveWriteFailed, "failed to walk project tree", err).MarkReported()
		}
		result.FileCount = plan.Files
		result.SyntheticCount = plan.Synthetic
		r.reporter.Info("Would add %s (%s excluded)",
			english.Plural(plan.Files, "file", ""), humanize.Comma(int64(plan.Excluded)))
		r.reportSynthetic(synthetic)
		return plan.Manifest, synthetic, nil
	}

	if err := os.MkdirAll(r.cfg.OutputPath(), 0o755); err != nil {
		r.reporter.Error("Cannot create %s: %v", r.cfg.OutputDir(), err)
		return nil, synthetic, model.WrapCLIError(model.ExitArchiveWriteFailed, "failed to create output directory", err).MarkReported()
	}

	archivePath := r.cfg.ArchivePath(result.StartedAt)
	r.reporter.Info("Creating %s", r.cfg.ArchiveName(result.StartedAt))

	built, err := builder.Build(archivePath, archive.Metadata{
		Version:   r.version,
		CreatedAt: result.StartedAt,
		Revision:  result.Revision,
	})
	if err != nil {
		r.reporter.Error("Cannot write archive: %v", err)
		return nil, synthetic, model.WrapCLIError(model.ExitArchiveWriteFailed, "failed to write archive", err).MarkReported()
	}

	result.ArchivePath = archivePath
	result.FileCount = built.Files
	result.SyntheticCount = built.Synthetic
	result.ArchiveSize = built.Size
	r.reporter.Success("Added %s (%s excluded)",
		english.Plural(built.Files, "file", ""), humanize.Comma(int64(built.Excluded)))
	r.reportSynthetic(synthetic)

	// The post-check reads the archive back from disk.
	contents, err := archive.ReadManifest(archivePath)
	if err != nil {
		r.reporter.Error("Cannot read back archive: %v", err)
		return nil, synthetic, model.WrapCLIError(model.ExitVerificationFailed, "failed to read archive", err).MarkReported()
	}
	return contents.Manifest, synthetic, nil
}

func (r *Runner) reportSynthetic(synthetic archive.Synthetic) {
	for _, dir := range synthetic.Dirs {
		r.reporter.Detail("runtime directory %s/ with %s", model.NormalizePath(dir), synthetic.Marker)
	}
}

// postVerify checks the manifest and reports every directory.
func (r *Runner) postVerify(verifier *verify.Verifier, manifest *model.Manifest, result *model.PackagingResult) error {
	r.reporter.Heading("Verifying archive")

	result.PostChecks = verifier.PostCheck(manifest)
	for _, check := range result.PostChecks {
		if check.Found {
			r.reporter.Success("%s", check.Dir)
		} else {
			r.reporter.Error("%s: not in archive", check.Dir)
		}
	}

	missing := model.MissingDirs(result.PostChecks)
	if len(missing) == 0 {
		return nil
	}

	if err := r.advance(result, model.StagePostFail); err != nil {
		return err
	}
	if result.ArchivePath != "" {
		r.reporter.Error("Archive is incomplete, kept for inspection: %s", result.ArchivePath)
	}
	return model.NewCLIError(
		model.ExitVerificationFailed,
		fmt.Sprintf("archive is missing required directories: %s", joinDirs(missing)),
	).MarkReported()
}

// writeSidecar writes the YAML listing. A failure only warns: the archive
// itself is complete and verified.
func (r *Runner) writeSidecar(result *model.PackagingResult, manifest *model.Manifest, synthetic archive.Synthetic) {
	built := archive.Result{
		Manifest:  manifest,
		Files:     result.FileCount,
		Synthetic: result.SyntheticCount,
		Size:      result.ArchiveSize,
	}
	meta := archive.Metadata{
		Version:   r.version,
		CreatedAt: result.StartedAt,
		Files:     result.FileCount,
		Revision:  result.Revision,
	}

	sidecarPath := archive.SidecarPath(result.ArchivePath)
	sidecar := archive.NewSidecar(result.ArchivePath, meta, built, synthetic, result.PostChecks)
	if err := archive.WriteSidecar(sidecarPath, sidecar); err != nil {
		r.reporter.Warn("Manifest not written: %v", err)
		return
	}
	r.reporter.Success("Manifest written to %s", sidecarPath)
}

// summarize prints the final block of a successful run.
func (r *Runner) summarize(result *model.PackagingResult) {
	if result.DryRun {
		r.reporter.Success("Dry run complete: %s would pass verification",
			english.Plural(result.FileCount, "file", ""))
		return
	}

	name := r.cfg.ArchiveName(result.StartedAt)

	r.reporter.Heading("Package created")
	r.reporter.Detail("File: %s", result.ArchivePath)
	r.reporter.Detail("Size: %s", humanize.Bytes(uint64(result.ArchiveSize)))
	r.reporter.Detail("Entries: %s files, %s runtime entries",
		humanize.Comma(int64(result.FileCount)), humanize.Comma(int64(result.SyntheticCount)))
	if !result.Revision.IsZero() {
		r.reporter.Detail("Revision: %s (%s)%s", result.Revision.ShortCommit(), result.Revision.Branch, dirtySuffix(result.Revision))
	}

	if target := r.cfg.DeployTarget(); target != "" {
		r.reporter.Info("To deploy:")
		r.reporter.Detail("scp %s %s", path.Join(r.cfg.OutputDir(), name), target)
	}
}

// advance moves the result to the next stage. A refused transition is a
// programming error and is reported as a general failure.
func (r *Runner) advance(result *model.PackagingResult, next model.Stage) error {
	if err := result.Advance(next); err != nil {
		r.reporter.Error("Internal error: %v", err)
		return model.WrapCLIError(model.ExitGeneralError, "packaging state error", err).MarkReported()
	}
	return nil
}

func dirtySuffix(rev model.Revision) string {
	if rev.Dirty {
		return ", uncommitted changes"
	}
	return ""
}

func joinDirs(dirs []model.RequiredDirectory) string {
	names := make([]string, 0, len(dirs))
	for _, d := range dirs {
		names = append(names, d.String())
	}
	return strings.Join(names, ", ")
}

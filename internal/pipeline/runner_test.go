package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/release-packager/internal/archive"
	"github.com/shinji-kodama/release-packager/internal/config"
	"github.com/shinji-kodama/release-packager/internal/model"
	"github.com/shinji-kodama/release-packager/internal/report"
	"github.com/shinji-kodama/release-packager/internal/vcs"
)

// fixedTime is the clock used by most tests.
var fixedTime = time.Date(2026, 10, 19, 14, 3, 59, 0, time.Local)

// fakeRevisions is a RevisionSource returning canned values.
type fakeRevisions struct {
	rev model.Revision
	err error
}

func (f fakeRevisions) Describe(string) (model.Revision, error) {
	return f.rev, f.err
}

// noRevision behaves like a project outside version control.
var noRevision = fakeRevisions{err: vcs.ErrNotRepository}

// createProject writes a project containing every default required
// directory plus the given extra files.
func createProject(t *testing.T, extra map[string]string) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"index.php": "<?php",
	}
	for _, dir := range config.DefaultRequiredDirs {
		files[dir+"/index.php"] = dir
	}
	for name, content := range extra {
		files[name] = content
	}

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// newRunner returns a Runner with a fixed clock, no revision source and a
// recording reporter.
func newRunner(t *testing.T, cfg config.Config, opts ...Option) (*Runner, *report.Recorder) {
	t.Helper()
	rec := report.NewRecorder()
	base := []Option{WithClock(func() time.Time { return fixedTime }), WithRevisionSource(noRevision), WithVersion("v0.0.0-test")}
	return New(cfg, rec, append(base, opts...)...), rec
}

// loadConfig loads configuration for root without user or environment layers.
func loadConfig(t *testing.T, root string) config.Config {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{Root: root, SkipUserConfig: true, SkipEnv: true})
	require.NoError(t, err)
	return cfg
}

// requireCLIError asserts err is a reported CLIError with the given code.
func requireCLIError(t *testing.T, err error, code model.ExitCode) *model.CLIError {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %v", err)
	assert.Equal(t, code, cliErr.Code)
	assert.True(t, cliErr.Reported, "pipeline errors are reported before returning")
	return cliErr
}

// TestRun_HappyPath packages a complete project.
func TestRun_HappyPath(t *testing.T) {
	root := createProject(t, map[string]string{"assets/app.js": "js"})
	cfg := config.Default(root)
	runner, rec := newRunner(t, cfg)

	result, err := runner.Run()
	require.NoError(t, err, rec.String())

	assert.Equal(t, model.StageSuccess, result.Stage)
	assert.True(t, result.Verified())
	assert.Equal(t, cfg.ArchivePath(fixedTime), result.ArchivePath)
	assert.Equal(t, "quality-system-2026-10-19_14-03-59.zip", filepath.Base(result.ArchivePath))
	assert.Equal(t, 13, result.FileCount, "index.php, app.js and one file per required directory")
	assert.Equal(t, 8, result.SyntheticCount)
	assert.Positive(t, result.ArchiveSize)
	assert.Empty(t, model.MissingDirs(result.PreChecks))
	assert.Empty(t, model.MissingDirs(result.PostChecks))
	assert.Empty(t, rec.Texts(report.LevelError))

	contents, err := archive.ReadManifest(result.ArchivePath)
	require.NoError(t, err)
	for _, dir := range cfg.RequiredDirs() {
		assert.True(t, contents.Manifest.HasPrefix(dir), "required dir %s must be in archive", dir)
	}
	for _, name := range []string{"logs/", "logs/.htaccess", "temp/", "temp/.htaccess", "cache/", "cache/.htaccess", "backups/", "backups/.htaccess"} {
		assert.True(t, contents.Manifest.Contains(name), name)
	}
	require.NoError(t, contents.MetadataErr)
	assert.Equal(t, "v0.0.0-test", contents.Metadata.Version)
	assert.Equal(t, 13, contents.Metadata.Files)

	assert.Contains(t, rec.String(), "File: "+result.ArchivePath)
	assert.NotContains(t, rec.String(), "scp", "no deploy hint without a target")
	_, statErr := os.Stat(archive.SidecarPath(result.ArchivePath))
	assert.True(t, os.IsNotExist(statErr), "no sidecar unless requested")
}

// TestRun_MissingRequiredDirectory reports exactly the missing directory,
// writes no archive and exits with ExitMissingSourceDir.
func TestRun_MissingRequiredDirectory(t *testing.T) {
	root := createProject(t, nil)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "forms")))

	cfg := config.Default(root)
	runner, rec := newRunner(t, cfg)

	result, err := runner.Run()
	cliErr := requireCLIError(t, err, model.ExitMissingSourceDir)
	assert.Contains(t, cliErr.Message, "forms")

	assert.Equal(t, model.StagePreFail, result.Stage)
	assert.Equal(t, []model.RequiredDirectory{"forms"}, model.MissingDirs(result.PreChecks))
	assert.Empty(t, result.ArchivePath)

	errorsReported := rec.Texts(report.LevelError)
	require.Len(t, errorsReported, 2)
	assert.Equal(t, "forms: not found", errorsReported[0])
	assert.Contains(t, errorsReported[1], "1 required directory missing")

	_, statErr := os.Stat(cfg.OutputPath())
	assert.True(t, os.IsNotExist(statErr), "output directory must not be created")
}

// TestRun_NegationHasNoEffect verifies a "!important.txt" line neither
// removes nor re-includes the file.
func TestRun_NegationHasNoEffect(t *testing.T) {
	tests := []struct {
		name     string
		ignore   string
		included bool
	}{
		{"negation only", "!important.txt\n", true},
		{"negation after broader rule", "*.txt\n!important.txt\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := createProject(t, map[string]string{
				"important.txt":  "keep me",
				".packageignore": tt.ignore,
			})
			runner, rec := newRunner(t, config.Default(root))

			result, err := runner.Run()
			require.NoError(t, err, rec.String())

			contents, err := archive.ReadManifest(result.ArchivePath)
			require.NoError(t, err)
			assert.Equal(t, tt.included, contents.Manifest.Contains("important.txt"))
		})
	}
}

// TestRun_Idempotent runs twice with different timestamps and compares the
// resulting entry lists.
func TestRun_Idempotent(t *testing.T) {
	root := createProject(t, map[string]string{".packageignore": "*.log\n", "debug.log": "x"})
	cfg := config.Default(root)

	first, _ := newRunner(t, cfg)
	second, _ := newRunner(t, cfg, WithClock(func() time.Time { return fixedTime.Add(time.Second) }))

	a, err := first.Run()
	require.NoError(t, err)
	b, err := second.Run()
	require.NoError(t, err)
	require.NotEqual(t, a.ArchivePath, b.ArchivePath)

	ma, err := archive.ReadManifest(a.ArchivePath)
	require.NoError(t, err)
	mb, err := archive.ReadManifest(b.ArchivePath)
	require.NoError(t, err)

	if diff := cmp.Diff(ma.Manifest.Entries(), mb.Manifest.Entries()); diff != "" {
		t.Errorf("entry lists differ between runs (-first +second):\n%s", diff)
	}
	assert.False(t, mb.Manifest.HasPrefix("releases"), "the first archive is not packaged into the second")
}

// TestRun_SyntheticEntriesUnderHostileRules verifies ignore rules naming the
// runtime directories do not remove their synthetic entries.
func TestRun_SyntheticEntriesUnderHostileRules(t *testing.T) {
	root := createProject(t, map[string]string{
		".packageignore": "logs/\ntemp/\ncache\nbackups/\n.htaccess\n",
		"logs/old.log":   "x",
	})
	runner, rec := newRunner(t, config.Default(root))

	result, err := runner.Run()
	require.NoError(t, err, rec.String())

	contents, err := archive.ReadManifest(result.ArchivePath)
	require.NoError(t, err)
	assert.True(t, contents.Manifest.Contains("logs/.htaccess"))
	assert.True(t, contents.Manifest.Contains("backups/"))
	assert.False(t, contents.Manifest.Contains("logs/old.log"))
}

// TestRun_BuiltinsNeverArchived checks version control data, old releases
// and the packaging scripts stay out of the archive.
func TestRun_BuiltinsNeverArchived(t *testing.T) {
	root := createProject(t, map[string]string{
		".git/HEAD":                "ref: refs/heads/main",
		".gitignore":               "vendor/",
		"releases/previous.zip":    "old",
		"scripts/package.py":       "tool",
		"scripts/package.ps1":      "tool",
		"scripts/package.php":      "tool",
		"scripts/cleanup.php":      "kept",
		"docs/releases/changes.md": "kept",
	})
	runner, rec := newRunner(t, config.Default(root))

	result, err := runner.Run()
	require.NoError(t, err, rec.String())

	contents, err := archive.ReadManifest(result.ArchivePath)
	require.NoError(t, err)
	for _, name := range contents.Manifest.Entries() {
		assert.False(t, strings.HasPrefix(name, ".git"), name)
		assert.False(t, strings.HasPrefix(name, "releases"), name)
		assert.False(t, strings.HasPrefix(name, "scripts/package."), name)
	}
	assert.True(t, contents.Manifest.Contains("scripts/cleanup.php"))
	assert.True(t, contents.Manifest.Contains("docs/releases/changes.md"))
}

// TestRun_PostCheckFailure excludes every file of a required directory so
// the archive lacks it. The archive must be kept.
func TestRun_PostCheckFailure(t *testing.T) {
	root := createProject(t, map[string]string{".packageignore": "forms/\n"})
	runner, rec := newRunner(t, config.Default(root))

	result, err := runner.Run()
	requireCLIError(t, err, model.ExitVerificationFailed)

	assert.Equal(t, model.StagePostFail, result.Stage)
	assert.Empty(t, model.MissingDirs(result.PreChecks), "forms exists on disk")
	assert.Equal(t, []model.RequiredDirectory{"forms"}, model.MissingDirs(result.PostChecks))
	assert.Contains(t, rec.Texts(report.LevelError), "forms: not in archive")

	_, statErr := os.Stat(result.ArchivePath)
	assert.NoError(t, statErr, "incomplete archive is kept for inspection")
}

// TestRun_DryRun writes nothing but still verifies the planned manifest.
func TestRun_DryRun(t *testing.T) {
	root := createProject(t, nil)
	cfg := config.Default(root)
	runner, rec := newRunner(t, cfg, WithDryRun(true))

	result, err := runner.Run()
	require.NoError(t, err, rec.String())

	assert.Equal(t, model.StageSuccess, result.Stage)
	assert.True(t, result.DryRun)
	assert.Empty(t, result.ArchivePath)
	assert.Equal(t, 12, result.FileCount)
	assert.Len(t, result.PostChecks, len(cfg.RequiredDirs()))

	_, statErr := os.Stat(cfg.OutputPath())
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the output directory")
	assert.Contains(t, rec.String(), "Dry run complete")
}

// TestRun_DryRunPredictsPostCheckFailure reports a failure without writing.
func TestRun_DryRunPredictsPostCheckFailure(t *testing.T) {
	root := createProject(t, map[string]string{".packageignore": "helpers/\n"})
	runner, _ := newRunner(t, config.Default(root), WithDryRun(true))

	result, err := runner.Run()
	requireCLIError(t, err, model.ExitVerificationFailed)
	assert.Equal(t, model.StagePostFail, result.Stage)
}

// TestRun_SidecarAndDeployHint covers the manifest sidecar, revision data
// and the scp hint.
func TestRun_SidecarAndDeployHint(t *testing.T) {
	root := createProject(t, map[string]string{
		".packager.yaml": "deploy_target: deploy@example.org:/srv/www/\nwrite_manifest: true\n",
	})
	rev := model.Revision{Commit: "0123456789abcdef0123456789abcdef01234567", Branch: "main", Dirty: true}
	runner, rec := newRunner(t, loadConfig(t, root), WithRevisionSource(fakeRevisions{rev: rev}))

	result, err := runner.Run()
	require.NoError(t, err, rec.String())
	assert.Equal(t, rev, result.Revision)

	sidecar, err := archive.ReadSidecar(archive.SidecarPath(result.ArchivePath))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.ArchivePath), sidecar.Archive)
	assert.Len(t, sidecar.Files, result.FileCount)
	require.NotNil(t, sidecar.Revision)
	assert.Equal(t, rev.Commit, sidecar.Revision.Commit)
	assert.Len(t, sidecar.Required, len(config.DefaultRequiredDirs))

	contents, err := archive.ReadManifest(result.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, rev, contents.Metadata.Revision)

	assert.Contains(t, rec.String(), "scp releases/quality-system-2026-10-19_14-03-59.zip deploy@example.org:/srv/www/")
	assert.Contains(t, rec.String(), "Revision: 0123456789ab (main), uncommitted changes")
}

// TestRun_DottedConfigPaths verifies "./" and ".." segments in configured
// paths still exclude the output directory and satisfy the post-check.
func TestRun_DottedConfigPaths(t *testing.T) {
	root := createProject(t, map[string]string{
		".packager.yaml":     "output_dir: ./releases\nrequired_dirs: [./config, helpers/../forms]\ntool_scripts: [./scripts/package.py]\n",
		"scripts/package.py": "tool",
	})
	cfg := loadConfig(t, root)

	first, _ := newRunner(t, cfg)
	second, rec := newRunner(t, cfg, WithClock(func() time.Time { return fixedTime.Add(time.Second) }))

	_, err := first.Run()
	require.NoError(t, err)
	result, err := second.Run()
	require.NoError(t, err, rec.String())
	assert.Empty(t, model.MissingDirs(result.PostChecks))

	contents, err := archive.ReadManifest(result.ArchivePath)
	require.NoError(t, err)
	assert.False(t, contents.Manifest.HasPrefix("releases"), "earlier archives are not packaged")
	assert.False(t, contents.Manifest.Contains("scripts/package.py"))
}

// TestRun_ReportsUserRuleCount counts only ignore file rules.
func TestRun_ReportsUserRuleCount(t *testing.T) {
	root := createProject(t, map[string]string{".packageignore": "# deps\n*.log\nnode_modules/\n"})
	runner, rec := newRunner(t, config.Default(root))

	_, err := runner.Run()
	require.NoError(t, err, rec.String())
	assert.Contains(t, rec.Texts(report.LevelInfo), "Loaded 2 exclusion rules from .packageignore")
}

// TestRun_RevisionErrorIsIgnored keeps packaging when git fails.
func TestRun_RevisionErrorIsIgnored(t *testing.T) {
	root := createProject(t, nil)
	runner, rec := newRunner(t, config.Default(root), WithRevisionSource(fakeRevisions{err: errors.New("git exploded")}))

	result, err := runner.Run()
	require.NoError(t, err, rec.String())
	assert.True(t, result.Revision.IsZero())
}

// TestRun_OutputDirectoryBlocked maps an uncreatable output directory to
// ExitArchiveWriteFailed.
func TestRun_OutputDirectoryBlocked(t *testing.T) {
	root := createProject(t, map[string]string{"releases": "a file, not a directory"})
	runner, _ := newRunner(t, config.Default(root))

	result, err := runner.Run()
	requireCLIError(t, err, model.ExitArchiveWriteFailed)
	assert.Equal(t, model.StageBuild, result.Stage)
}

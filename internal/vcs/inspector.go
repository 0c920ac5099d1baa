package vcs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// ErrNotRepository is returned by Describe when path is not inside a Git
// work tree.
var ErrNotRepository = errors.New("not a git work tree")

// Inspector reads revision information by invoking the git CLI.
//
// It is stateless apart from the git binary name, which tests may
// override to simulate a missing installation.
type Inspector struct {
	git string
}

// NewInspector creates an Inspector using the git binary found on PATH.
func NewInspector() *Inspector {
	return &Inspector{git: "git"}
}

// Available reports whether the git binary can be found.
func (i *Inspector) Available() bool {
	_, err := exec.LookPath(i.git)
	return err == nil
}

// IsRepository reports whether path is inside a Git work tree.
//
// Uses `git rev-parse --is-inside-work-tree`, which prints "true" inside a
// work tree and fails outside of one.
func (i *Inspector) IsRepository(path string) bool {
	output, err := i.run(path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(output) == "true"
}

// Describe returns the revision of the work tree containing path.
//
// It returns ErrNotRepository outside a work tree and a zero revision
// with that error when git is not installed. A repository without any
// commit also yields ErrNotRepository since there is nothing to record.
func (i *Inspector) Describe(path string) (model.Revision, error) {
	logger := logging.GetLogger("vcs")

	if !i.Available() {
		logger.Debug().Msg("git not found, skipping revision")
		return model.Revision{}, ErrNotRepository
	}
	if !i.IsRepository(path) {
		return model.Revision{}, ErrNotRepository
	}

	commit, err := i.run(path, "rev-parse", "HEAD")
	if err != nil {
		// An unborn branch has no HEAD commit yet.
		return model.Revision{}, ErrNotRepository
	}

	branch, err := i.CurrentBranch(path)
	if err != nil {
		return model.Revision{}, err
	}

	dirty, err := i.IsDirty(path)
	if err != nil {
		return model.Revision{}, err
	}

	rev := model.Revision{
		Commit: strings.TrimSpace(commit),
		Branch: branch,
		Dirty:  dirty,
	}
	logger.Debug().
		Str("commit", rev.ShortCommit()).
		Str("branch", rev.Branch).
		Bool("dirty", rev.Dirty).
		Msg("Resolved revision")
	return rev, nil
}

// CurrentBranch returns the name of the currently checked-out branch.
//
// Uses `git rev-parse --abbrev-ref HEAD` which returns the short branch name
// (e.g., "main" instead of "refs/heads/main"). Returns "HEAD" if the
// repository is in a detached HEAD state.
func (i *Inspector) CurrentBranch(path string) (string, error) {
	output, err := i.run(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// IsDirty reports whether the work tree has uncommitted changes, including
// untracked files.
//
// Uses `git status --porcelain`, whose output is empty for a clean tree.
func (i *Inspector) IsDirty(path string) (bool, error) {
	output, err := i.run(path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

// run executes a git command with the given arguments in the specified
// directory.
//
// The path is passed to git via the -C flag, which causes git to change to
// that directory before doing anything else. On failure the stderr output
// is included in the error message for diagnostics.
func (i *Inspector) run(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)

	// #nosec G204 - args are constructed internally, not from user input
	cmd := exec.Command(i.git, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}

	return stdout.String(), nil
}

package vcs

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGit skips the test when git is not installed.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// setupTestRepo creates a temporary directory with an initialized Git
// repository containing a single commit.
//
// It configures a local user.name and user.email so that `git commit`
// works in CI environments where global git config may not be set.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")
	runTestGit(t, dir, "config", "commit.gpgsign", "false")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test Repo\n"), 0o644))
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")
	runTestGit(t, dir, "checkout", "-B", "main")

	return dir
}

// runTestGit runs a git command in dir and fails the test on a non-zero exit.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

// TestDescribe_CleanRepository reads commit, branch and a clean state.
func TestDescribe_CleanRepository(t *testing.T) {
	repo := setupTestRepo(t)
	head := runTestGit(t, repo, "rev-parse", "HEAD")

	rev, err := NewInspector().Describe(repo)
	require.NoError(t, err)

	assert.Equal(t, head[:40], rev.Commit)
	assert.Equal(t, "main", rev.Branch)
	assert.False(t, rev.Dirty)
	assert.Len(t, rev.ShortCommit(), 12)
}

// TestDescribe_DirtyRepository detects modified and untracked files.
func TestDescribe_DirtyRepository(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "new.txt"), []byte("x"), 0o644))

	rev, err := NewInspector().Describe(repo)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
}

// TestDescribe_Subdirectory resolves the revision from inside the tree.
func TestDescribe_Subdirectory(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo, "config")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	i := NewInspector()
	assert.True(t, i.IsRepository(sub))

	rev, err := i.Describe(sub)
	require.NoError(t, err)
	assert.False(t, rev.IsZero())
}

// TestDescribe_DetachedHead reports "HEAD" as the branch.
func TestDescribe_DetachedHead(t *testing.T) {
	repo := setupTestRepo(t)
	runTestGit(t, repo, "checkout", "--detach")

	rev, err := NewInspector().Describe(repo)
	require.NoError(t, err)
	assert.Equal(t, "HEAD", rev.Branch)
}

// TestDescribe_NotRepository returns ErrNotRepository for a plain directory.
func TestDescribe_NotRepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	i := NewInspector()
	assert.False(t, i.IsRepository(dir))

	rev, err := i.Describe(dir)
	assert.True(t, errors.Is(err, ErrNotRepository))
	assert.True(t, rev.IsZero())
}

// TestDescribe_NoCommits treats an unborn branch as having no revision.
func TestDescribe_NoCommits(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	runTestGit(t, dir, "init")

	_, err := NewInspector().Describe(dir)
	assert.True(t, errors.Is(err, ErrNotRepository))
}

// TestDescribe_GitMissing simulates a machine without git.
func TestDescribe_GitMissing(t *testing.T) {
	i := &Inspector{git: "git-binary-that-does-not-exist"}
	assert.False(t, i.Available())

	rev, err := i.Describe(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotRepository))
	assert.True(t, rev.IsZero())
}

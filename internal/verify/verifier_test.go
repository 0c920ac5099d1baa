package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/release-packager/internal/model"
)

// makeTree creates the given files (with parent directories) under a new
// temporary root. Names ending in "/" create empty directories.
func makeTree(t *testing.T, names ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
	return root
}

func dirs(names ...string) []model.RequiredDirectory {
	return model.ToRequiredDirectories(names)
}

// TestPreCheck_AllPresent verifies found flags and recursive file counts.
func TestPreCheck_AllPresent(t *testing.T) {
	root := makeTree(t,
		"config/app.php",
		"config/db.php",
		"helpers/util.php",
		"statistics/index.php",
		"statistics/analytics/a.php",
		"statistics/analytics/shared/b.php",
		"scripts/",
	)

	v := New(root, dirs("config", "helpers", "statistics", "statistics/analytics", "scripts"))
	checks := v.PreCheck()

	assert.Equal(t, []model.DirCheck{
		{Dir: "config", Found: true, FileCount: 2},
		{Dir: "helpers", Found: true, FileCount: 1},
		{Dir: "statistics", Found: true, FileCount: 3},
		{Dir: "statistics/analytics", Found: true, FileCount: 2},
		{Dir: "scripts", Found: true, FileCount: 0},
	}, checks)
	assert.Empty(t, model.MissingDirs(checks))
}

// TestPreCheck_MissingDirectory verifies every missing directory is
// reported, in configured order, and the others still pass.
func TestPreCheck_MissingDirectory(t *testing.T) {
	root := makeTree(t, "config/app.php", "scripts/deploy.sh")

	v := New(root, dirs("config", "helpers", "scripts", "forms"))
	checks := v.PreCheck()

	require.Len(t, checks, 4)
	assert.True(t, checks[0].Found)
	assert.False(t, checks[1].Found)
	assert.Zero(t, checks[1].FileCount)
	assert.True(t, checks[2].Found)
	assert.Equal(t, []model.RequiredDirectory{"helpers", "forms"}, model.MissingDirs(checks))
}

// TestPreCheck_FileInsteadOfDirectory documents that existence is all that
// is checked: a regular file with the directory's name passes.
func TestPreCheck_FileInsteadOfDirectory(t *testing.T) {
	root := makeTree(t, "config")

	checks := New(root, dirs("config")).PreCheck()
	require.Len(t, checks, 1)
	assert.True(t, checks[0].Found)
	assert.Equal(t, 1, checks[0].FileCount)
}

// TestPreCheck_BackslashDirectory verifies configured backslash separators
// are accepted on every platform.
func TestPreCheck_BackslashDirectory(t *testing.T) {
	root := makeTree(t, "statistics/analytics/config/x.php")

	checks := New(root, dirs(`statistics\analytics\config`)).PreCheck()
	require.Len(t, checks, 1)
	assert.True(t, checks[0].Found)
	assert.Equal(t, model.RequiredDirectory(`statistics\analytics\config`), checks[0].Dir, "reported as configured")
}

// TestPostCheck covers the raw prefix semantics against a manifest.
func TestPostCheck(t *testing.T) {
	manifest := model.NewManifest(
		"config/app.php",
		"configuration.php",
		"helpers/util.php",
		"statistics/analytics/targets/views/list.php",
		"logs/",
		"logs/.htaccess",
	)

	tests := []struct {
		name  string
		dir   model.RequiredDirectory
		found bool
	}{
		{"direct file", "config", true},
		{"nested file", "statistics/analytics/targets/views", true},
		{"parent of nested file", "statistics", true},
		{"prefix only matches through another name", "configuration", true},
		{"synthetic directory entry", "logs", true},
		{"absent", "forms", false},
		{"backslash configured", `statistics\analytics\targets`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := New("/unused", []model.RequiredDirectory{tt.dir}).PostCheck(manifest)
			require.Len(t, checks, 1)
			assert.Equal(t, tt.found, checks[0].Found)
			assert.Zero(t, checks[0].FileCount, "post-check never counts files")
		})
	}
}

// TestPostCheck_NilManifest fails every directory.
func TestPostCheck_NilManifest(t *testing.T) {
	checks := New("/unused", dirs("config", "helpers")).PostCheck(nil)
	assert.Equal(t, []model.RequiredDirectory{"config", "helpers"}, model.MissingDirs(checks))
}

// TestNew_CopiesDirectories ensures later changes to the caller's slice do
// not affect the verifier.
func TestNew_CopiesDirectories(t *testing.T) {
	in := dirs("config")
	v := New("/unused", in)
	in[0] = "changed"

	assert.Equal(t, []model.RequiredDirectory{"config"}, v.Dirs())
}

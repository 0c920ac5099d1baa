package verify

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// Verifier checks a fixed list of required directories against one project.
//
// It holds no mutable state and can be reused for any number of checks.
type Verifier struct {
	root string
	dirs []model.RequiredDirectory
}

// New creates a Verifier for the project at root.
// The directory list is copied; its order is the order of every result.
func New(root string, dirs []model.RequiredDirectory) *Verifier {
	copied := make([]model.RequiredDirectory, len(dirs))
	copy(copied, dirs)
	return &Verifier{root: root, dirs: copied}
}

// Dirs returns a copy of the required directories in check order.
func (v *Verifier) Dirs() []model.RequiredDirectory {
	out := make([]model.RequiredDirectory, len(v.dirs))
	copy(out, v.dirs)
	return out
}

// PreCheck verifies that every required directory exists under the project
// root and counts the regular files beneath each one.
//
// Existence uses os.Stat, so a path that exists but is a regular file still
// passes, and a symbolic link to a directory counts as present. The file
// count is diagnostic only: unreadable subdirectories are skipped silently.
func (v *Verifier) PreCheck() []model.DirCheck {
	logger := logging.GetLogger("verify")

	checks := make([]model.DirCheck, 0, len(v.dirs))
	for _, dir := range v.dirs {
		path := filepath.Join(v.root, filepath.FromSlash(dir.Normalized()))

		check := model.DirCheck{Dir: dir}
		if _, err := os.Stat(path); err == nil {
			check.Found = true
			check.FileCount = countFiles(path)
		}

		logger.Debug().
			Str("dir", dir.String()).
			Bool("found", check.Found).
			Int("files", check.FileCount).
			Msg("Pre-check")
		checks = append(checks, check)
	}
	return checks
}

// PostCheck verifies that the manifest holds at least one entry starting
// with each required directory. A nil manifest fails every directory.
func (v *Verifier) PostCheck(manifest *model.Manifest) []model.DirCheck {
	logger := logging.GetLogger("verify")

	checks := make([]model.DirCheck, 0, len(v.dirs))
	for _, dir := range v.dirs {
		check := model.DirCheck{Dir: dir}
		if manifest != nil {
			check.Found = manifest.HasPrefix(dir.Normalized())
		}

		logger.Debug().
			Str("dir", dir.String()).
			Bool("found", check.Found).
			Msg("Post-check")
		checks = append(checks, check)
	}
	return checks
}

// countFiles returns the number of non-directory entries below path.
// Walk errors are ignored: the count is informational.
func countFiles(path string) int {
	count := 0
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip what cannot be read, keep counting the rest.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

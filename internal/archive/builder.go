package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// Excluder decides which project paths stay out of the archive.
// Paths are project-relative and use forward slashes.
type Excluder interface {
	// Excluded reports whether the file at rel must not be archived.
	Excluded(rel string) bool

	// SkipDir reports whether the whole directory at rel can be pruned.
	// It must only return true when every file below rel is excluded.
	SkipDir(rel string) bool
}

// Synthetic describes the placeholder runtime directories written into
// every archive.
type Synthetic struct {
	// Dirs are the runtime directories, e.g. "logs" and "cache".
	Dirs []string

	// Marker is the file name placed inside each directory.
	Marker string

	// Content is the marker file's content.
	Content string
}

// Entries returns the synthetic entry names in write order: for each
// directory its "<dir>/" entry followed by its marker file.
func (s Synthetic) Entries() []string {
	entries := make([]string, 0, 2*len(s.Dirs))
	for _, dir := range s.Dirs {
		dir = model.NormalizePath(dir)
		entries = append(entries, dir+"/", dir+"/"+s.Marker)
	}
	return entries
}

// markerNames returns the set of marker file entry names. A real file with
// one of these names is never archived: the synthetic content always wins.
func (s Synthetic) markerNames() map[string]struct{} {
	names := make(map[string]struct{}, len(s.Dirs))
	for _, dir := range s.Dirs {
		names[model.NormalizePath(dir)+"/"+s.Marker] = struct{}{}
	}
	return names
}

// Result summarizes a build or a plan.
type Result struct {
	// Manifest lists every entry name in write order.
	Manifest *model.Manifest

	// Files is the number of real project files.
	Files int

	// Synthetic is the number of synthetic entries.
	Synthetic int

	// Excluded is the number of files rejected by the Excluder. Files in
	// pruned directories are not counted.
	Excluded int

	// Size is the archive size in bytes. Zero for a plan.
	Size int64
}

// source is one project file selected for the archive.
type source struct {
	// name is the archive entry name.
	name string

	// path is the absolute filesystem path.
	path string
}

// Builder creates archives from one project tree.
type Builder struct {
	root      string
	excluder  Excluder
	synthetic Synthetic
}

// NewBuilder creates a Builder for the project at root.
func NewBuilder(root string, excluder Excluder, synthetic Synthetic) *Builder {
	return &Builder{root: root, excluder: excluder, synthetic: synthetic}
}

// Plan walks the project tree and reports what Build would write, without
// writing anything.
func (b *Builder) Plan() (Result, error) {
	files, excluded, err := b.collect()
	if err != nil {
		return Result{}, err
	}

	manifest := model.NewManifest()
	for _, f := range files {
		manifest.Add(f.name)
	}
	synthetic := b.synthetic.Entries()
	for _, name := range synthetic {
		manifest.Add(name)
	}

	return Result{
		Manifest:  manifest,
		Files:     len(files),
		Synthetic: len(synthetic),
		Excluded:  excluded,
	}, nil
}

// Build writes the archive to dest and returns what was written.
//
// The tree is walked completely before dest is created, so an archive
// written inside the project root can never include itself. meta.Files is
// overwritten with the real file count. On any error the partial archive
// is removed; the file is closed on every path.
func (b *Builder) Build(dest string, meta Metadata) (result Result, err error) {
	logger := logging.GetLogger("archive")
	done := logging.LogOperationStart(logger, "build")
	defer done()

	files, excluded, err := b.collect()
	if err != nil {
		return Result{}, err
	}

	out, err := os.Create(dest)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(dest)
			result = Result{}
		}
	}()

	zw := zip.NewWriter(out)
	manifest := model.NewManifest()

	for _, f := range files {
		if err = addFile(zw, f); err != nil {
			return Result{}, err
		}
		manifest.Add(f.name)
		logger.Trace().Str("entry", f.name).Msg("Added file")
	}

	synthetic := b.synthetic.Entries()
	for _, name := range synthetic {
		if err = b.addSynthetic(zw, name, meta.CreatedAt); err != nil {
			return Result{}, err
		}
		manifest.Add(name)
		logger.Debug().Str("entry", name).Msg("Added synthetic entry")
	}

	meta.Files = len(files)
	if err = zw.SetComment(BuildComment(meta)); err != nil {
		return Result{}, fmt.Errorf("failed to set archive comment: %w", err)
	}

	// Closing the zip writer flushes the central directory; the file itself
	// is closed by the deferred function.
	if err = zw.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to finalize archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	logger.Debug().
		Str("archive", dest).
		Int("files", len(files)).
		Int("synthetic", len(synthetic)).
		Int("excluded", excluded).
		Int64("bytes", info.Size()).
		Msg("Archive written")

	return Result{
		Manifest:  manifest,
		Files:     len(files),
		Synthetic: len(synthetic),
		Excluded:  excluded,
		Size:      info.Size(),
	}, nil
}

// collect walks the project root and returns the files to archive in
// lexical walk order, plus the number of excluded files.
//
// Symbolic links to files are followed; symbolic links to directories are
// not descended. Broken links and special files are skipped, and so are
// directories that cannot be read. Only a failure on the root itself
// aborts the walk.
func (b *Builder) collect() ([]source, int, error) {
	logger := logging.GetLogger("archive")
	reserved := b.synthetic.markerNames()

	var files []source
	excluded := 0

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path != b.root && d != nil && d.IsDir() {
				logger.Warn().Str("dir", path).Err(walkErr).Msg("Skipping unreadable directory")
				return filepath.SkipDir
			}
			return walkErr
		}

		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			if b.excluder.SkipDir(name) {
				logger.Debug().Str("dir", name).Msg("Pruned directory")
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Stat(path)
			if err != nil {
				logger.Debug().Str("path", name).Err(err).Msg("Skipping broken symbolic link")
				return nil
			}
			if target.IsDir() {
				logger.Debug().Str("path", name).Msg("Not following directory link")
				return nil
			}
		case !d.Type().IsRegular():
			logger.Debug().Str("path", name).Msg("Skipping special file")
			return nil
		}

		if b.excluder.Excluded(name) {
			excluded++
			logger.Trace().Str("path", name).Msg("Excluded")
			return nil
		}
		if _, ok := reserved[name]; ok {
			logger.Warn().Str("path", name).Msg("Project file replaced by runtime marker")
			return nil
		}

		files = append(files, source{name: name, path: path})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk project tree: %w", err)
	}
	return files, excluded, nil
}

// addFile copies one project file into the archive with Deflate.
func addFile(zw *zip.Writer, f source) (err error) {
	// os.Stat follows symbolic links, so the header describes the target.
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.name, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create header for %s: %w", f.name, err)
	}
	header.Name = f.name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", f.name, err)
	}

	in, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.name, err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", f.name, closeErr)
		}
	}()

	if _, err = io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.name, err)
	}
	return nil
}

// addSynthetic writes one synthetic entry. Names ending in "/" become
// directory entries; anything else is a marker file with the configured
// content.
func (b *Builder) addSynthetic(zw *zip.Writer, name string, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}

	isDir := name[len(name)-1] == '/'
	if isDir {
		// zip.Writer stores directory entries uncompressed since they
		// carry no data.
		header.SetMode(fs.ModeDir | 0o755)
	} else {
		header.SetMode(0o644)
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if isDir {
		return nil
	}
	if _, err := io.WriteString(w, b.synthetic.Content); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

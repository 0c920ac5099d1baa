package archive

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/shinji-kodama/release-packager/internal/model"
)

// Contents is what ReadManifest recovers from an archive on disk.
type Contents struct {
	// Manifest lists the entry names in central directory order.
	Manifest *model.Manifest

	// Metadata is the parsed build metadata. Only valid when MetadataErr
	// is nil.
	Metadata Metadata

	// MetadataErr explains why the comment could not be parsed, e.g. for
	// archives written by another tool. It never makes ReadManifest fail.
	MetadataErr error

	// Size is the archive size in bytes.
	Size int64
}

// ReadManifest opens the archive at path and returns its entry names and
// build metadata.
//
// The manifest comes from the archive's central directory, not from the
// builder's memory, so it reflects what a deployment will actually unpack.
func ReadManifest(path string) (contents Contents, err error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Contents{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", closeErr)
		}
	}()

	manifest := model.NewManifest()
	for _, f := range r.File {
		manifest.Add(f.Name)
	}

	contents = Contents{Manifest: manifest}
	contents.Metadata, contents.MetadataErr = ParseComment(r.Comment)

	// zip.ReadCloser does not expose the underlying file, so stat by path.
	size, err := fileSize(path)
	if err != nil {
		return Contents{}, err
	}
	contents.Size = size

	return contents, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	return info.Size(), nil
}

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/release-packager/internal/model"
)

// SidecarSuffix is appended to the archive path to name its manifest file,
// e.g. "quality-system-2026-10-19_14-03-59.zip.manifest.yaml".
const SidecarSuffix = ".manifest.yaml"

// Sidecar is the YAML listing written next to a verified archive.
//
// It lets a deployment reviewer see what ships without unpacking the
// archive, and records which required directories were confirmed.
type Sidecar struct {
	// Archive is the archive file name, without directory.
	Archive string `yaml:"archive"`

	// Tool and Version identify the writer.
	Tool    string `yaml:"tool"`
	Version string `yaml:"version"`

	// CreatedAt is the packaging time in UTC.
	CreatedAt time.Time `yaml:"created_at"`

	// Revision is the source revision, omitted outside version control.
	Revision *model.Revision `yaml:"revision,omitempty"`

	// Size is the archive size in bytes.
	Size int64 `yaml:"size"`

	// Files lists the real project files, sorted.
	Files []string `yaml:"files"`

	// Synthetic lists the synthetic runtime entries in write order.
	Synthetic []string `yaml:"synthetic"`

	// Required holds the post-check result for every required directory.
	Required []model.DirCheck `yaml:"required"`
}

// SidecarPath returns the sidecar path for an archive path.
func SidecarPath(archivePath string) string {
	return archivePath + SidecarSuffix
}

// NewSidecar assembles a Sidecar from a finished build.
func NewSidecar(archivePath string, meta Metadata, result Result, synthetic Synthetic, checks []model.DirCheck) Sidecar {
	s := Sidecar{
		Archive:   filepath.Base(archivePath),
		Tool:      ToolName,
		Version:   meta.Version,
		CreatedAt: meta.CreatedAt.UTC(),
		Size:      result.Size,
		Files:     []string{},
		Synthetic: synthetic.Entries(),
		Required:  checks,
	}
	if result.Manifest != nil {
		s.Files = result.Manifest.Files()
		// Marker files also end without "/" and show up in Files().
		s.Files = withoutNames(s.Files, synthetic.Entries())
	}
	if !meta.Revision.IsZero() {
		rev := meta.Revision
		s.Revision = &rev
	}
	return s
}

// WriteSidecar serializes s as YAML to path, overwriting any existing file.
func WriteSidecar(path string, s Sidecar) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest YAML: %w", err)
	}

	// The header marks the file as generated so nobody edits it by hand.
	header := fmt.Sprintf("# Generated by %s for %s\n# DO NOT EDIT - this file is rewritten with every archive\n", ToolName, s.Archive)

	if err := os.WriteFile(path, []byte(header+string(data)), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest file %s: %w", path, err)
	}
	return nil
}

// ReadSidecar parses a sidecar file.
func ReadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("failed to read manifest file %s: %w", path, err)
	}

	var s Sidecar
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sidecar{}, fmt.Errorf("failed to parse manifest file %s: %w", path, err)
	}
	return s, nil
}

func withoutNames(names, drop []string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := skip[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

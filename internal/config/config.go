package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// AppName is the binary name, also used for the user-global config directory.
const AppName = "release-packager"

// TimestampLayout formats the archive timestamp as YYYY-MM-DD_HH-MM-SS.
const TimestampLayout = "2006-01-02_15-04-05"

// ArchiveExtension is appended to every archive name.
const ArchiveExtension = ".zip"

// Default values. They reproduce the constants the project has always been
// packaged with.
var (
	DefaultNamePrefix           = "quality-system"
	DefaultOutputDir            = "releases"
	DefaultIgnoreFile           = ".packageignore"
	DefaultRuntimeMarker        = ".htaccess"
	DefaultRuntimeMarkerContent = "Deny from all"

	// DefaultRequiredDirs must exist on disk and in the archive.
	DefaultRequiredDirs = []string{
		"config",
		"helpers",
		"forms",
		"statistics",
		"statistics/analytics",
		"statistics/analytics/config",
		"statistics/analytics/shared",
		"statistics/analytics/targets",
		"statistics/analytics/targets/views",
		"statistics/analytics/templates",
		"scripts",
	}

	// DefaultRuntimeDirs are written into every archive as empty directories
	// holding a deny-all marker file.
	DefaultRuntimeDirs = []string{"logs", "temp", "cache", "backups"}

	// DefaultToolScripts are the packaging scripts, current and legacy,
	// that never ship.
	DefaultToolScripts = []string{
		"scripts/package.py",
		"scripts/package.ps1",
		"scripts/package.php",
	}
)

// Config is the immutable configuration of one packaging run.
// Build it with Load or Default; the zero value is not usable.
type Config struct {
	root                 string
	namePrefix           string
	outputDir            string
	ignoreFile           string
	requiredDirs         []string
	runtimeDirs          []string
	runtimeMarker        string
	runtimeMarkerContent string
	toolScripts          []string
	deployTarget         string
	writeManifest        bool
	sources              []string
}

// Default returns the compiled-in configuration for the given project root.
func Default(root string) Config {
	return Config{
		root:                 filepath.Clean(root),
		namePrefix:           DefaultNamePrefix,
		outputDir:            DefaultOutputDir,
		ignoreFile:           DefaultIgnoreFile,
		requiredDirs:         cloneStrings(DefaultRequiredDirs),
		runtimeDirs:          cloneStrings(DefaultRuntimeDirs),
		runtimeMarker:        DefaultRuntimeMarker,
		runtimeMarkerContent: DefaultRuntimeMarkerContent,
		toolScripts:          cloneStrings(DefaultToolScripts),
	}
}

// Root returns the absolute project root.
func (c Config) Root() string { return c.root }

// NamePrefix returns the fixed archive name prefix.
func (c Config) NamePrefix() string { return c.namePrefix }

// OutputDir returns the output directory relative to the root, using
// forward slashes.
func (c Config) OutputDir() string { return c.outputDir }

// IgnoreFile returns the ignore file name relative to the root.
func (c Config) IgnoreFile() string { return c.ignoreFile }

// RequiredDirs returns a copy of the required directory list.
func (c Config) RequiredDirs() []string { return cloneStrings(c.requiredDirs) }

// RuntimeDirs returns a copy of the synthetic runtime directory list.
func (c Config) RuntimeDirs() []string { return cloneStrings(c.runtimeDirs) }

// RuntimeMarker returns the name of the deny-all file placed in each
// runtime directory.
func (c Config) RuntimeMarker() string { return c.runtimeMarker }

// RuntimeMarkerContent returns the content of the deny-all file.
func (c Config) RuntimeMarkerContent() string { return c.runtimeMarkerContent }

// ToolScripts returns a copy of the packaging script paths excluded by
// built-in rules.
func (c Config) ToolScripts() []string { return cloneStrings(c.toolScripts) }

// DeployTarget returns the scp destination printed after a successful run,
// or "" when none is configured.
func (c Config) DeployTarget() string { return c.deployTarget }

// WriteManifest reports whether a YAML manifest sidecar is written.
func (c Config) WriteManifest() bool { return c.writeManifest }

// Sources returns the configuration files that were loaded, in order.
func (c Config) Sources() []string { return cloneStrings(c.sources) }

// WithWriteManifest returns a copy of c with the sidecar switch set.
// Command-line flags use it to override file configuration.
func (c Config) WithWriteManifest(enabled bool) Config {
	c.writeManifest = enabled
	return c
}

// OutputPath returns the absolute output directory.
func (c Config) OutputPath() string {
	return filepath.Join(c.root, filepath.FromSlash(c.outputDir))
}

// IgnoreFilePath returns the absolute path of the ignore file.
func (c Config) IgnoreFilePath() string {
	return filepath.Join(c.root, filepath.FromSlash(c.ignoreFile))
}

// ArchiveName returns the archive file name for the given timestamp, e.g.
// "quality-system-2026-10-19_14-03-59.zip".
func (c Config) ArchiveName(t time.Time) string {
	return fmt.Sprintf("%s-%s%s", c.namePrefix, t.Format(TimestampLayout), ArchiveExtension)
}

// ArchivePath returns the absolute archive path for the given timestamp.
func (c Config) ArchivePath(t time.Time) string {
	return filepath.Join(c.OutputPath(), c.ArchiveName(t))
}

// Validate checks the configuration for values that would make the run
// write outside the project or produce an unusable archive.
func (c Config) Validate() error {
	if c.root == "" {
		return fmt.Errorf("project root must not be empty")
	}
	if c.namePrefix == "" {
		return fmt.Errorf("name_prefix must not be empty")
	}
	if strings.ContainsAny(c.namePrefix, `/\`) {
		return fmt.Errorf("name_prefix %q must not contain path separators", c.namePrefix)
	}
	if err := validateRelative("output_dir", c.outputDir); err != nil {
		return err
	}
	if err := validateRelative("ignore_file", c.ignoreFile); err != nil {
		return err
	}
	for _, d := range c.requiredDirs {
		if err := validateRelative("required_dirs", d); err != nil {
			return err
		}
	}
	for _, d := range c.runtimeDirs {
		if err := validateRelative("runtime_dirs", d); err != nil {
			return err
		}
	}
	if c.runtimeMarker == "" || strings.ContainsAny(c.runtimeMarker, `/\`) {
		return fmt.Errorf("runtime_marker %q must be a plain file name", c.runtimeMarker)
	}
	return nil
}

// validateRelative rejects empty, absolute and root-escaping paths.
func validateRelative(key, p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("%s: empty path", key)
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if filepath.IsAbs(p) || strings.HasPrefix(slashed, "/") {
		return fmt.Errorf("%s: %q must be relative to the project root", key, p)
	}
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(slashed)))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%s: %q must stay inside the project root", key, p)
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

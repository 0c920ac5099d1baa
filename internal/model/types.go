// Package model defines the domain types for the release-packager CLI.
//
// All entities in this package are transient: they are created at the start
// of a packaging run, filled in while the run progresses, and discarded at
// process exit. These types are used throughout the application for passing
// data between the verifier, the archive builder and the reporter.
package model

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// Stage represents a state of the packaging state machine.
// The transitions are:
//
//	init → pre-verify → pre-fail
//	                  → build → post-verify → post-fail
//	                                        → success
//
// There are no retries: pre-fail, post-fail and success are terminal.
type Stage string

const (
	// StageInit is the state before any filesystem access.
	StageInit Stage = "init"

	// StagePreVerify checks that every required directory exists on disk.
	StagePreVerify Stage = "pre-verify"

	// StagePreFail means at least one required directory is missing from
	// the source tree. No archive is written.
	StagePreFail Stage = "pre-fail"

	// StageBuild walks the project tree and writes the archive.
	StageBuild Stage = "build"

	// StagePostVerify re-opens the archive and checks its entry list.
	StagePostVerify Stage = "post-verify"

	// StagePostFail means the archive exists but lacks a required directory.
	// The archive file is kept on disk for inspection.
	StagePostFail Stage = "post-fail"

	// StageSuccess means the archive was built and verified.
	StageSuccess Stage = "success"
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	return string(s)
}

// IsValid checks whether the Stage value is one of the predefined states.
func (s Stage) IsValid() bool {
	switch s {
	case StageInit, StagePreVerify, StagePreFail, StageBuild,
		StagePostVerify, StagePostFail, StageSuccess:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for the states a run ends in.
func (s Stage) IsTerminal() bool {
	return s == StagePreFail || s == StagePostFail || s == StageSuccess
}

// nextStages lists the legal successors of every non-terminal stage.
var nextStages = map[Stage][]Stage{
	StageInit:       {StagePreVerify},
	StagePreVerify:  {StagePreFail, StageBuild},
	StageBuild:      {StagePostVerify},
	StagePostVerify: {StagePostFail, StageSuccess},
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s Stage) CanTransition(next Stage) bool {
	for _, candidate := range nextStages[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseStage converts a string to a Stage.
// Returns an error if the string does not match any valid stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToLower(s))
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid stage: %q", s)
	}
	return stage, nil
}

// RuleOrigin records where an exclusion rule came from.
type RuleOrigin string

const (
	// OriginBuiltin marks rules that are always present: version control,
	// the output directory and the packaging tool's own scripts.
	OriginBuiltin RuleOrigin = "builtin"

	// OriginUser marks rules read from the project's ignore file.
	OriginUser RuleOrigin = "user"
)

// String returns the string representation of RuleOrigin.
func (o RuleOrigin) String() string {
	return string(o)
}

// IsValid checks whether the RuleOrigin value is one of the predefined origins.
func (o RuleOrigin) IsValid() bool {
	return o == OriginBuiltin || o == OriginUser
}

// RequiredDirectory is a project-relative directory that must exist on disk
// before packaging and must be represented in the archive afterwards.
type RequiredDirectory string

// String returns the directory exactly as configured.
func (d RequiredDirectory) String() string {
	return string(d)
}

// Normalized returns the directory in the form used for archive entry
// names. See CleanPath.
func (d RequiredDirectory) Normalized() string {
	return CleanPath(string(d))
}

// NormalizePath converts every backslash in p to a forward slash.
// Paths produced by the walker need nothing more.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// CleanPath normalizes a configured relative path: forward slashes, no "."
// or ".." segments and no trailing slash. "./releases" and
// "a/../releases" both become "releases". An empty path stays empty.
func CleanPath(p string) string {
	p = strings.TrimSpace(NormalizePath(p))
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// ToRequiredDirectories converts plain strings to RequiredDirectory values,
// preserving order.
func ToRequiredDirectories(dirs []string) []RequiredDirectory {
	out := make([]RequiredDirectory, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, RequiredDirectory(d))
	}
	return out
}

// DirCheck is the outcome of checking one required directory, either on
// disk (pre-check) or in the archive manifest (post-check).
type DirCheck struct {
	// Dir is the required directory that was checked.
	Dir RequiredDirectory `json:"dir" yaml:"dir"`

	// Found is true when the directory exists (pre-check) or when at least
	// one archive entry starts with it (post-check).
	Found bool `json:"found" yaml:"found"`

	// FileCount is the number of files found beneath the directory on disk.
	// Only populated by the pre-check, and purely informational.
	FileCount int `json:"fileCount,omitempty" yaml:"file_count,omitempty"`
}

// MissingDirs returns the directories whose check failed, in check order.
func MissingDirs(checks []DirCheck) []RequiredDirectory {
	var missing []RequiredDirectory
	for _, c := range checks {
		if !c.Found {
			missing = append(missing, c.Dir)
		}
	}
	return missing
}

// Manifest is the set of entry names written into an archive.
//
// It is filled incrementally while the archive is built and then only read.
// Entry names always use forward slashes. Insertion order is preserved so
// that listings match the order of the archive's central directory.
type Manifest struct {
	entries []string
	index   map[string]struct{}
}

// NewManifest creates a manifest pre-populated with the given entry names.
// Duplicate names are kept once.
func NewManifest(names ...string) *Manifest {
	m := &Manifest{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		m.Add(n)
	}
	return m
}

// Add records an entry name. It returns false if the name was already present.
func (m *Manifest) Add(name string) bool {
	if m.index == nil {
		m.index = make(map[string]struct{})
	}
	name = NormalizePath(name)
	if _, ok := m.index[name]; ok {
		return false
	}
	m.index[name] = struct{}{}
	m.entries = append(m.entries, name)
	return true
}

// Contains reports whether the exact entry name is present.
func (m *Manifest) Contains(name string) bool {
	_, ok := m.index[NormalizePath(name)]
	return ok
}

// HasPrefix reports whether any entry name starts with prefix.
// The comparison is a plain string prefix test on normalized names, so
// "config" also matches "configuration.php".
func (m *Manifest) HasPrefix(prefix string) bool {
	prefix = NormalizePath(prefix)
	for _, e := range m.entries {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

// Entries returns a copy of the entry names in insertion order.
func (m *Manifest) Entries() []string {
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// Files returns the entry names that are not directory markers, sorted.
func (m *Manifest) Files() []string {
	files := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if !strings.HasSuffix(e, "/") {
			files = append(files, e)
		}
	}
	sort.Strings(files)
	return files
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Revision describes the version-control state of the packaged project.
// The zero value means the project is not under version control.
type Revision struct {
	// Commit is the full commit SHA of HEAD.
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`

	// Branch is the short branch name, or "HEAD" when detached.
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`

	// Dirty is true when the work tree has uncommitted changes.
	Dirty bool `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// IsZero reports whether no revision information is available.
func (r Revision) IsZero() bool {
	return r.Commit == ""
}

// ShortCommit returns the first 12 characters of the commit SHA.
func (r Revision) ShortCommit() string {
	if len(r.Commit) > 12 {
		return r.Commit[:12]
	}
	return r.Commit
}

// PackagingResult is the outcome of one packaging run.
type PackagingResult struct {
	// Stage is the last state the run reached.
	Stage Stage `json:"stage"`

	// ArchivePath is the absolute path of the produced archive.
	// Empty when the run stopped before the build stage or was a dry run.
	ArchivePath string `json:"archivePath,omitempty"`

	// FileCount is the number of real project files written to the archive.
	FileCount int `json:"fileCount"`

	// SyntheticCount is the number of synthetic entries (runtime directory
	// markers and their deny-all files).
	SyntheticCount int `json:"syntheticCount"`

	// ArchiveSize is the size of the archive file in bytes.
	ArchiveSize int64 `json:"archiveSize,omitempty"`

	// PreChecks holds the on-disk required directory checks.
	PreChecks []DirCheck `json:"preChecks,omitempty"`

	// PostChecks holds the in-archive required directory checks.
	PostChecks []DirCheck `json:"postChecks,omitempty"`

	// Revision is the version-control state of the project, if any.
	Revision Revision `json:"revision,omitempty"`

	// StartedAt is the timestamp used for the archive name.
	StartedAt time.Time `json:"startedAt"`

	// DryRun is true when no archive was written on purpose.
	DryRun bool `json:"dryRun,omitempty"`
}

// Verified returns true if the run reached the success stage.
func (r *PackagingResult) Verified() bool {
	return r.Stage == StageSuccess
}

// Advance moves the result to the next stage, enforcing the state machine.
func (r *PackagingResult) Advance(next Stage) error {
	if !r.Stage.CanTransition(next) {
		return fmt.Errorf("invalid stage transition %s → %s", r.Stage, next)
	}
	r.Stage = next
	return nil
}

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a packaging run.
type ExitCode int

const (
	// ExitSuccess indicates the archive was built and verified.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMissingSourceDir indicates at least one required directory was
	// missing from the project tree. No archive was written.
	ExitMissingSourceDir ExitCode = 2

	// ExitVerificationFailed indicates the archive was written but does not
	// contain every required directory. The archive is kept on disk.
	ExitVerificationFailed ExitCode = 3

	// ExitArchiveWriteFailed indicates the archive could not be written.
	ExitArchiveWriteFailed ExitCode = 4

	// ExitConfigInvalid indicates the configuration could not be loaded
	// or failed validation.
	ExitConfigInvalid ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Reported is true when the failure has already been printed by the
	// reporter, so the top-level handler only needs to exit.
	Reported bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// MarkReported flags the error as already shown to the user and returns it.
func (e *CLIError) MarkReported() *CLIError {
	e.Reported = true
	return e
}

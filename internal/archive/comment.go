package archive

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shinji-kodama/release-packager/internal/model"
)

// Comment key constants define the keys used to persist build metadata in
// the archive's ZIP comment. The comment is the only place this metadata
// lives inside the archive itself.
//
// All keys share the "packager." prefix so the comment stays recognizable
// when another tool has written one of its own.
const (
	// KeyPrefix is the common prefix for all metadata keys.
	KeyPrefix = "packager."

	// KeyTool identifies archives written by this tool.
	// Value: always ToolName.
	KeyTool = KeyPrefix + "tool"

	// KeyVersion stores the version of the tool that wrote the archive.
	KeyVersion = KeyPrefix + "version"

	// KeyCreatedAt stores the creation time as an RFC3339 UTC timestamp.
	KeyCreatedAt = KeyPrefix + "created-at"

	// KeyFiles stores the number of real project files in the archive.
	// Synthetic runtime entries are not counted.
	KeyFiles = KeyPrefix + "files"

	// KeyRevision stores the full commit SHA of the packaged project.
	// Omitted when the project is not under version control.
	KeyRevision = KeyPrefix + "revision"

	// KeyBranch stores the branch name of the packaged project.
	KeyBranch = KeyPrefix + "branch"

	// KeyDirty is "true" when the work tree had uncommitted changes.
	KeyDirty = KeyPrefix + "dirty"
)

// ToolName is the constant value of KeyTool.
const ToolName = "release-packager"

// Metadata is the build information stored with every archive.
type Metadata struct {
	// Version is the tool version, e.g. "v1.2.0" or "dev".
	Version string

	// CreatedAt is the time the packaging run started.
	CreatedAt time.Time

	// Files is the number of real project files written.
	// The Builder fills it in; callers leave it zero.
	Files int

	// Revision is the version-control state of the project, if known.
	Revision model.Revision
}

// BuildComment encodes metadata as sorted "key=value" lines.
//
// Sorting keeps the comment byte-identical for identical metadata, which
// makes archives from the same input easy to compare.
func BuildComment(meta Metadata) string {
	fields := map[string]string{
		KeyTool:    ToolName,
		KeyVersion: meta.Version,
		// UTC keeps the value independent of the packaging host's zone.
		KeyCreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
		KeyFiles:     strconv.Itoa(meta.Files),
	}
	if !meta.Revision.IsZero() {
		fields[KeyRevision] = meta.Revision.Commit
		fields[KeyBranch] = meta.Revision.Branch
		fields[KeyDirty] = strconv.FormatBool(meta.Revision.Dirty)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, fields[k])
	}
	return b.String()
}

// ParseComment reconstructs Metadata from a ZIP comment.
// It is the inverse of BuildComment.
//
// Required keys: tool, created-at and files. Missing required keys are all
// listed in a single error. Lines without "=" and keys outside the
// "packager." namespace are ignored.
func ParseComment(comment string) (Metadata, error) {
	fields := commentFields(comment)

	requiredKeys := []string{KeyTool, KeyCreatedAt, KeyFiles}
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Metadata{}, fmt.Errorf("missing required archive metadata: %s", strings.Join(missing, ", "))
	}

	if fields[KeyTool] != ToolName {
		return Metadata{}, fmt.Errorf(
			"metadata %s has unexpected value %q (expected %q)",
			KeyTool, fields[KeyTool], ToolName,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, fields[KeyCreatedAt])
	if err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata %s: %w", KeyCreatedAt, err)
	}

	files, err := strconv.Atoi(fields[KeyFiles])
	if err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata %s: %w", KeyFiles, err)
	}

	meta := Metadata{
		Version:   fields[KeyVersion],
		CreatedAt: createdAt,
		Files:     files,
		Revision: model.Revision{
			Commit: fields[KeyRevision],
			Branch: fields[KeyBranch],
		},
	}

	if raw, ok := fields[KeyDirty]; ok {
		dirty, err := strconv.ParseBool(raw)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid metadata %s: %w", KeyDirty, err)
		}
		meta.Revision.Dirty = dirty
	}

	return meta, nil
}

// commentFields splits a comment into its "packager." key/value pairs.
func commentFields(comment string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(comment, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		fields[key] = value
	}
	return fields
}

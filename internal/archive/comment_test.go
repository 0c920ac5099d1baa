package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/release-packager/internal/model"
)

// TestBuildComment verifies the encoded keys, the UTC timestamp and the
// sorted line order.
func TestBuildComment(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	meta := Metadata{
		Version:   "v1.4.0",
		CreatedAt: time.Date(2026, 10, 19, 19, 0, 0, 0, jst),
		Files:     42,
		Revision: model.Revision{
			Commit: "0123456789abcdef0123456789abcdef01234567",
			Branch: "main",
			Dirty:  true,
		},
	}

	assert.Equal(t,
		"packager.branch=main\n"+
			"packager.created-at=2026-10-19T10:00:00Z\n"+
			"packager.dirty=true\n"+
			"packager.files=42\n"+
			"packager.revision=0123456789abcdef0123456789abcdef01234567\n"+
			"packager.tool=release-packager\n"+
			"packager.version=v1.4.0\n",
		BuildComment(meta))
}

// TestBuildComment_NoRevision omits revision keys outside version control.
func TestBuildComment_NoRevision(t *testing.T) {
	comment := BuildComment(Metadata{Version: "dev", CreatedAt: time.Unix(0, 0)})

	assert.NotContains(t, comment, KeyRevision)
	assert.NotContains(t, comment, KeyBranch)
	assert.NotContains(t, comment, KeyDirty)
	assert.Contains(t, comment, "packager.files=0\n")
}

// TestParseComment_RoundTrip verifies ParseComment reverses BuildComment.
func TestParseComment_RoundTrip(t *testing.T) {
	meta := Metadata{
		Version:   "v1.4.0",
		CreatedAt: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Files:     7,
		Revision:  model.Revision{Commit: "abc123", Branch: "release/1.4"},
	}

	parsed, err := ParseComment(BuildComment(meta))
	require.NoError(t, err)
	assert.Equal(t, meta, parsed)
}

// TestParseComment_MissingKeys lists every missing required key at once.
func TestParseComment_MissingKeys(t *testing.T) {
	_, err := ParseComment("packager.version=v1\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyTool)
	assert.Contains(t, err.Error(), KeyCreatedAt)
	assert.Contains(t, err.Error(), KeyFiles)

	_, err = ParseComment("")
	assert.Error(t, err, "archives without a comment carry no metadata")
}

// TestParseComment_InvalidValues covers malformed required and optional values.
func TestParseComment_InvalidValues(t *testing.T) {
	valid := map[string]string{
		KeyTool:      ToolName,
		KeyCreatedAt: "2026-10-19T10:00:00Z",
		KeyFiles:     "3",
	}

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"foreign tool", KeyTool, "zip"},
		{"bad timestamp", KeyCreatedAt, "yesterday"},
		{"bad file count", KeyFiles, "many"},
		{"bad dirty flag", KeyDirty, "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comment := ""
			for k, v := range valid {
				if k != tt.key {
					comment += k + "=" + v + "\n"
				}
			}
			comment += tt.key + "=" + tt.value + "\n"

			_, err := ParseComment(comment)
			assert.Error(t, err)
		})
	}
}

// TestParseComment_IgnoresForeignLines keeps parsing robust against text
// added by other tools.
func TestParseComment_IgnoresForeignLines(t *testing.T) {
	comment := "Built on CI\n" +
		"other.key=1\n" +
		"  packager.tool=release-packager  \r\n" +
		"packager.created-at=2026-10-19T10:00:00Z\n" +
		"packager.files=1\n"

	meta, err := ParseComment(comment)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Files)
	assert.True(t, meta.Revision.IsZero())
}

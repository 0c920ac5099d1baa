// Package archive writes and reads the deployable ZIP archive.
//
// The Builder walks the project root, asks an Excluder about every path,
// and writes the surviving files with Deflate compression under their
// forward-slash relative names. After the real files it appends the
// synthetic runtime entries: one "<dir>/" directory entry and one marker
// file per runtime directory. Synthetic entries never pass through the
// Excluder, so no ignore rule can remove them.
//
// Build metadata (tool, version, creation time, file count and the source
// revision) is stored in the ZIP comment as "key=value" lines. The comment
// needs no extra entry, so it never shows up in the manifest that the
// post-check inspects.
//
// ReadManifest re-opens a written archive and returns its entry names and
// metadata. WriteSidecar and ReadSidecar handle the optional YAML listing
// kept next to the archive.
//
// Everything here uses archive/zip from the standard library: it is the
// format the deployment target unpacks, and the standard implementation
// already provides streaming writes, Deflate and comments.
package archive

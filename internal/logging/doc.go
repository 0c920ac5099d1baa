// Package logging configures the zerolog logger shared by every package of
// the release-packager CLI.
//
// Diagnostics are ephemeral: logs go to stderr only and never to a file.
// User-facing status lines are not logs; they are emitted through the
// report package on stdout.
package logging

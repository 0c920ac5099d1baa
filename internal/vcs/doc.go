// Package vcs reads the version-control state of the project being
// packaged.
//
// The revision (commit, branch and dirty flag) is stored with the archive
// so a deployed release can be traced back to its source. All Git
// operations are performed via os/exec calls to the git binary, rather
// than using a Git library like go-git. This approach:
//   - Avoids CGO dependencies (libgit2)
//   - Uses the exact same Git behavior the user sees in their terminal
//   - Needs only read-only plumbing commands available in every Git version
//
// A project that is not a Git work tree, or a machine without git, simply
// yields an empty revision. Packaging never depends on version control.
package vcs

// Package model defines the domain types and value objects for the
// release-packager CLI.
//
// This package contains pure data structures with no external dependencies.
// Entities such as Manifest and PackagingResult live for a single run of the
// tool; the only thing that outlives the process is the archive file itself.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model

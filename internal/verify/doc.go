// Package verify checks that every required directory is present before and
// after packaging.
//
// Two checks exist:
//   - PreCheck looks at the project tree on disk. A directory is found when
//     os.Stat succeeds on it; the number of regular files beneath it is
//     counted for the report but never affects the outcome.
//   - PostCheck looks at the manifest read back from the written archive. A
//     directory is found when at least one entry name starts with it. This
//     is a plain string prefix test, so "config" is also satisfied by an
//     entry named "configuration.php".
//
// Both checks always inspect every directory and return results in the
// configured order, so the caller can report all failures at once.
// The package has no output of its own; results are returned as
// model.DirCheck values and rendered by the reporter.
package verify

// Package exclude compiles exclusion rules and decides which project files
// are left out of the archive.
//
// Rules come from two places. Built-in rules are regular expressions that
// are always present: version control metadata, the output directory and
// the packaging tool's own scripts. User rules are glob-like lines read from
// the project's ignore file (.packageignore by default).
//
// User lines are converted with a deliberately small transformation:
//
//	.   → \.     (literal dot)
//	*   → .*     (any sequence, including "/")
//	dir/ → dir/.* (everything below a directory)
//
// Nothing else is escaped and patterns are not anchored. A path is excluded
// when any rule matches anywhere inside it, so "log" also excludes
// "catalog.php". Lines starting with "!" are dropped: re-inclusion is not
// supported, and such a line has no effect at all.
//
// All matching happens on paths with forward slashes.
package exclude

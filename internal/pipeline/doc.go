// Package pipeline runs one packaging job from start to finish.
//
// A Runner drives the packaging state machine:
//
//	init → pre-verify → pre-fail
//	                  → build → post-verify → post-fail
//	                                        → success
//
// Each stage reports its progress through a report.Reporter. Failures are
// returned as *model.CLIError values that are already marked as reported,
// so the command layer only has to turn them into exit codes.
//
// The Runner owns no global state. The clock, the revision source and the
// tool version are injected, which keeps archive names and metadata
// deterministic in tests.
package pipeline

// Package report renders packaging progress for humans.
//
// The pipeline talks to a Reporter and never to an output stream, so the
// same run can print colored lines to a terminal or be captured in tests.
//
// Two implementations exist:
//   - Terminal writes "[INFO]", "[OK]", "[WARN]" and "[ERROR]" lines with
//     pterm colors, plus a lipgloss banner heading. Colors are dropped when
//     the output is not a terminal or NO_COLOR is set.
//   - Recorder keeps every line in memory.
package report

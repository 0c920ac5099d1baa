package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Level classifies a status line.
type Level string

const (
	// LevelInfo marks progress messages.
	LevelInfo Level = "INFO"

	// LevelSuccess marks a passed check or a finished step.
	LevelSuccess Level = "OK"

	// LevelWarn marks something unusual that does not fail the run.
	LevelWarn Level = "WARN"

	// LevelError marks a failure.
	LevelError Level = "ERROR"
)

// Prefix returns the bracketed tag printed before the message, e.g. "[OK]".
func (l Level) Prefix() string {
	return "[" + string(l) + "]"
}

// Reporter receives the user-facing messages of a packaging run.
type Reporter interface {
	// Heading prints a section banner.
	Heading(title string)

	// Info, Success, Warn and Error print one tagged status line each.
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)

	// Detail prints an untagged, indented line.
	Detail(format string, args ...any)
}

// levelStyles maps each level to its pterm color.
var levelStyles = map[Level]*pterm.Style{
	LevelInfo:    pterm.NewStyle(pterm.FgCyan),
	LevelSuccess: pterm.NewStyle(pterm.FgGreen),
	LevelWarn:    pterm.NewStyle(pterm.FgYellow),
	LevelError:   pterm.NewStyle(pterm.FgRed),
}

// bannerStyle frames headings.
var bannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("6")).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(lipgloss.Color("240"))

// Terminal is a Reporter writing to a stream, normally stdout.
// It is safe for concurrent use.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewTerminal creates a Terminal writing to out.
func NewTerminal(out io.Writer, color bool) *Terminal {
	return &Terminal{out: out, color: color}
}

// ColorEnabled reports whether colored output should be used for f.
//
// Colors are off when noColor is set (the --no-color flag), when the
// NO_COLOR environment variable is non-empty, or when f is not a terminal.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Heading prints title as a banner with a blank line before it.
func (t *Terminal) Heading(title string) {
	if t.color {
		t.write("\n" + bannerStyle.Render(title) + "\n")
		return
	}
	t.write(fmt.Sprintf("\n%s\n%s\n", title, strings.Repeat("=", len(title))))
}

// Info prints an "[INFO]" line.
func (t *Terminal) Info(format string, args ...any) { t.line(LevelInfo, format, args...) }

// Success prints an "[OK]" line.
func (t *Terminal) Success(format string, args ...any) { t.line(LevelSuccess, format, args...) }

// Warn prints a "[WARN]" line.
func (t *Terminal) Warn(format string, args ...any) { t.line(LevelWarn, format, args...) }

// Error prints an "[ERROR]" line.
func (t *Terminal) Error(format string, args ...any) { t.line(LevelError, format, args...) }

// Detail prints an indented line without a tag.
func (t *Terminal) Detail(format string, args ...any) {
	t.write("  " + fmt.Sprintf(format, args...) + "\n")
}

func (t *Terminal) line(level Level, format string, args ...any) {
	prefix := level.Prefix()
	if t.color {
		prefix = levelStyles[level].Sprint(prefix)
	}
	t.write(prefix + " " + fmt.Sprintf(format, args...) + "\n")
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Console output is best effort; a closed stdout must not fail the run.
	_, _ = io.WriteString(t.out, s)
}

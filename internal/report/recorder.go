package report

import (
	"fmt"
	"strings"
	"sync"
)

// Line is one message captured by a Recorder.
type Line struct {
	// Level is empty for headings and details.
	Level Level

	// Heading is true for banner lines.
	Heading bool

	// Text is the formatted message.
	Text string
}

// Recorder is a Reporter that keeps every message in memory.
type Recorder struct {
	mu    sync.Mutex
	lines []Line
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(l Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, l)
}

// Heading records a banner.
func (r *Recorder) Heading(title string) { r.add(Line{Heading: true, Text: title}) }

// Info records an info line.
func (r *Recorder) Info(format string, args ...any) {
	r.add(Line{Level: LevelInfo, Text: fmt.Sprintf(format, args...)})
}

// Success records a success line.
func (r *Recorder) Success(format string, args ...any) {
	r.add(Line{Level: LevelSuccess, Text: fmt.Sprintf(format, args...)})
}

// Warn records a warning line.
func (r *Recorder) Warn(format string, args ...any) {
	r.add(Line{Level: LevelWarn, Text: fmt.Sprintf(format, args...)})
}

// Error records an error line.
func (r *Recorder) Error(format string, args ...any) {
	r.add(Line{Level: LevelError, Text: fmt.Sprintf(format, args...)})
}

// Detail records a detail line.
func (r *Recorder) Detail(format string, args ...any) {
	r.add(Line{Text: fmt.Sprintf(format, args...)})
}

// Lines returns a copy of everything recorded so far.
func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Texts returns the text of every line recorded at level, in order.
func (r *Recorder) Texts(level Level) []string {
	var texts []string
	for _, l := range r.Lines() {
		if l.Level == level && !l.Heading {
			texts = append(texts, l.Text)
		}
	}
	return texts
}

// String renders the recording the way a colorless Terminal would print
// it, one line per message. Useful in failure messages.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, l := range r.Lines() {
		switch {
		case l.Heading:
			b.WriteString("== " + l.Text + "\n")
		case l.Level == "":
			b.WriteString("  " + l.Text + "\n")
		default:
			b.WriteString(l.Level.Prefix() + " " + l.Text + "\n")
		}
	}
	return b.String()
}

package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI colour codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Status markers
const (
	MarkOK   = "✓"
	MarkWarn = "⚠"
	MarkFail = "✗"
)

// IsColorEnabled returns true if ANSI colour codes should be emitted on
// stdout: it must be a terminal and NO_COLOR must be unset.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Reporter prints check results with status markers and keeps count of
// problems, split into critical failures and warnings.
type Reporter struct {
	w        io.Writer
	color    bool
	critical int
	warnings int
}

// NewReporter writes to w, colouring markers when color is set.
func NewReporter(w io.Writer, color bool) *Reporter {
	return &Reporter{w: w, color: color}
}

func (r *Reporter) mark(color, mark string) string {
	if r.color {
		return color + mark + colorReset
	}
	return mark
}

// OK prints a passed check.
func (r *Reporter) OK(format string, args ...any) {
	fmt.Fprintf(r.w, "%s %s\n", r.mark(colorGreen, MarkOK), fmt.Sprintf(format, args...))
}

// Warn prints a non-fatal problem.
func (r *Reporter) Warn(format string, args ...any) {
	r.warnings++
	fmt.Fprintf(r.w, "%s %s\n", r.mark(colorYellow, MarkWarn), fmt.Sprintf(format, args...))
}

// Fail prints a critical problem.
func (r *Reporter) Fail(format string, args ...any) {
	r.critical++
	fmt.Fprintf(r.w, "%s %s\n", r.mark(colorRed, MarkFail), fmt.Sprintf(format, args...))
}

// Action prints an indented remedy under the previous line.
func (r *Reporter) Action(format string, args ...any) {
	fmt.Fprintf(r.w, "  Action: %s\n", fmt.Sprintf(format, args...))
}

// Note prints an indented detail under the previous line.
func (r *Reporter) Note(format string, args ...any) {
	line := "  " + fmt.Sprintf(format, args...)
	if r.color {
		line = colorGray + line + colorReset
	}
	fmt.Fprintln(r.w, line)
}

// Critical is the number of Fail calls.
func (r *Reporter) Critical() int { return r.critical }

// Warnings is the number of Warn calls.
func (r *Reporter) Warnings() int { return r.warnings }

package git

import (
	"errors"
	"strings"
)

// Result captures the outcome of a single git invocation: the exit state,
// the captured output split into plain and error-classified lines, and the
// situations recognized by the detectors attached to the command.
type Result struct {
	// Success is true when the process exited with code zero, or with a code
	// the command explicitly tolerates.
	Success bool

	// ExitCode is the process exit code. It is -1 when the process never
	// started.
	ExitCode int

	// Output holds the non-error lines in arrival order.
	Output []string

	// ErrorOutput holds the lines classified as errors, in arrival order.
	ErrorOutput []string

	// Events are the situations recognized in the captured output.
	Events []Event

	// Err records a start failure or cancellation. A completed process with a
	// non-zero exit code is not an Err; it is reported through ExitCode and
	// ErrorOutput.
	Err error
}

// errorPrefixes classifies a line as error output when the line starts with
// one of these, case-insensitively. The table mirrors what git prints on
// stderr for fatal and recoverable failures; it is fixed by contract so that
// classification stays a pure function of the line text.
var errorPrefixes = []string{
	"error:",
	"remote: error",
	"fatal:",
	"cannot",
	"could not",
	"conflict",
	"unable",
	"refusing to pull",
	"interactive rebase already started",
}

// IsErrorLine reports whether the line belongs to error output.
func IsErrorLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// Merge combines two results of one logical operation. Success is the logical
// AND, the exit code prefers the later non-zero code, and output and error
// lines are concatenated in order. Merge is associative.
func Merge(a, b Result) Result {
	exit := a.ExitCode
	if b.ExitCode != 0 {
		exit = b.ExitCode
	}
	return Result{
		Success:     a.Success && b.Success,
		ExitCode:    exit,
		Output:      concat(a.Output, b.Output),
		ErrorOutput: concat(a.ErrorOutput, b.ErrorOutput),
		Events:      append(append([]Event(nil), a.Events...), b.Events...),
		Err:         joinErrs(a.Err, b.Err),
	}
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func joinErrs(a, b error) error {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return errors.Join(a, b)
	}
}

// Has reports whether any recognized event has the given kind.
func (r Result) Has(kind EventKind) bool {
	for _, ev := range r.Events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// First returns the first event matching any of the given kinds, honoring the
// order of the kinds argument: all events are searched for kinds[0] before
// kinds[1] is considered. This is how callers express the fixed inspection
// priority after a command returns.
func (r Result) First(kinds ...EventKind) (Event, bool) {
	for _, kind := range kinds {
		for _, ev := range r.Events {
			if ev.Kind == kind {
				return ev, true
			}
		}
	}
	return Event{}, false
}

// ErrorText renders the error output as a single message for display. When no
// error lines were captured it falls back to the output tail, then to Err.
func (r Result) ErrorText() string {
	if len(r.ErrorOutput) > 0 {
		return strings.Join(r.ErrorOutput, "\n")
	}
	if tail := outputTail(r.Output, syntheticTailLines); tail != "" {
		return tail
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

// OutputText returns the plain output joined with newlines.
func (r Result) OutputText() string {
	return strings.Join(r.Output, "\n")
}

// syntheticTailLines is how many trailing output lines are promoted to error
// output when a command fails without printing any recognizable error line.
const syntheticTailLines = 3

func outputTail(lines []string, n int) string {
	tail := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(tail) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		tail = append([]string{lines[i]}, tail...)
	}
	return strings.Join(tail, "\n")
}

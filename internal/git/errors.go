package git

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError wraps a git invocation that could not run to completion, such
// as a binary that failed to start or a process killed on cancellation.
type CommandError struct {
	Dir    string
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s in %s: %v", strings.Join(e.Args, " "), e.Dir, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\noutput: " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ErrAuthFailed reports that a remote command kept failing authentication
// after every credential retry was spent.
var ErrAuthFailed = errors.New("git: authentication failed")

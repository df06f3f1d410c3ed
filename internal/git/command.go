package git

import "strings"

// LockKind classifies a command for the repository access policy. Write
// commands mutate the working tree, index or refs and run exclusively;
// read commands only inspect state and may overlap with each other.
type LockKind int

const (
	LockRead LockKind = iota
	LockWrite
)

// Command describes one git invocation. The zero value is not usable; build
// commands through the Client methods, which attach the detectors and exit
// rules each subcommand needs.
type Command struct {
	// Dir is the repository root the command runs in.
	Dir string

	// Name is the git subcommand, such as "checkout" or "rebase".
	Name string

	// Args are the arguments following the subcommand name.
	Args []string

	// Lock classifies the command for the access policy.
	Lock LockKind

	// Remote marks commands that talk to a remote and therefore take part in
	// the credential handshake and its retry loop.
	Remote bool

	// Detect lists the output detectors evaluated after the process exits.
	Detect []Detector

	// TolerateExit, when set, reports whether a non-zero exit code still
	// counts as success given the captured output. Used for subcommands whose
	// exit codes carry meaning beyond pass or fail.
	TolerateExit func(code int, output []string) bool

	// Env holds extra environment entries for this invocation only.
	Env []string

	// Stdin, when non-empty, is written to the process on standard input.
	Stdin string

	// OnLine, when set, receives every captured line as it arrives. Intended
	// for progress display; classification does not depend on it.
	OnLine func(line string)
}

// Argv returns the full argument vector after the git binary name.
func (c Command) Argv() []string {
	argv := make([]string, 0, 1+len(c.Args))
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String renders the command for logs and error messages.
func (c Command) String() string {
	return "git " + strings.Join(c.Argv(), " ")
}

// TolerateExitCodes builds a TolerateExit rule accepting the given codes
// regardless of output.
func TolerateExitCodes(codes ...int) func(int, []string) bool {
	return func(code int, _ []string) bool {
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		return false
	}
}

// TolerateExitWhen builds a TolerateExit rule accepting the given code only
// when some output line contains the fragment, case-insensitively.
func TolerateExitWhen(code int, fragment string) func(int, []string) bool {
	lowered := strings.ToLower(fragment)
	return func(got int, output []string) bool {
		if got != code {
			return false
		}
		for _, line := range output {
			if strings.Contains(strings.ToLower(line), lowered) {
				return true
			}
		}
		return false
	}
}

package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Terminal asks each question on an interactive terminal and blocks for the
// answer.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewTerminal returns a Terminal reading from stdin and writing to stderr, so
// prompts stay visible when stdout is piped.
func NewTerminal() *Terminal {
	return NewTerminalIO(os.Stdin, os.Stderr)
}

// NewTerminalIO returns a Terminal over explicit streams.
func NewTerminalIO(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(in), out: out}
}

func (t *Terminal) ConfirmRollback(title, message string) bool {
	fmt.Fprintf(t.out, "\n%s\n%s\n", title, message)
	return t.yesNo("Roll back the completed repositories?")
}

func (t *Terminal) ChooseForceOrSmart(operation string, paths []string) Choice {
	fmt.Fprintf(t.out, "\nLocal changes would be overwritten by %s:\n", operation)
	for i, p := range paths {
		if i == 10 {
			fmt.Fprintf(t.out, "  ... and %d more\n", len(paths)-i)
			break
		}
		fmt.Fprintf(t.out, "  %s\n", p)
	}
	for {
		fmt.Fprintf(t.out, "[s]tash and retry, [f]orce, [c]ancel: ")
		switch strings.ToLower(t.readLine()) {
		case "s", "stash", "smart":
			return ChoiceSmart
		case "f", "force":
			return ChoiceForce
		case "c", "cancel", "":
			return ChoiceCancel
		}
	}
}

func (t *Terminal) ResolveConflicts(root string) bool {
	fmt.Fprintf(t.out, "\nConflicts in %s.\n", root)
	fmt.Fprintf(t.out, "Resolve them in another terminal (edit, then git add), and come back.\n")
	return t.yesNo("All conflicts resolved?")
}

func (t *Terminal) ChooseBranch(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	fmt.Fprintf(t.out, "\nSelect a branch:\n")
	for i, name := range candidates {
		fmt.Fprintf(t.out, "  %2d) %s\n", i+1, name)
	}
	fmt.Fprintf(t.out, "Number or name (empty cancels): ")
	answer := t.readLine()
	if answer == "" {
		return ""
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1]
		}
		return ""
	}
	for _, name := range candidates {
		if name == answer {
			return name
		}
	}
	return ""
}

// Username answers a git credential prompt for a user name. prompt is git's
// own text and is shown as it came.
func (t *Terminal) Username(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	answer := t.readLine()
	if answer == "" {
		return "", fmt.Errorf("empty username")
	}
	return answer, nil
}

// Password answers a git credential prompt for a password or passphrase.
// The answer is read with echo.
func (t *Terminal) Password(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	answer := t.readLine()
	if answer == "" {
		return "", fmt.Errorf("empty password")
	}
	return answer, nil
}

func (t *Terminal) yesNo(question string) bool {
	fmt.Fprintf(t.out, "%s [y/N]: ", question)
	switch strings.ToLower(t.readLine()) {
	case "y", "yes":
		return true
	}
	return false
}

func (t *Terminal) readLine() string {
	if !t.in.Scan() {
		return ""
	}
	return strings.TrimSpace(t.in.Text())
}

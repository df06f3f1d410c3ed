package git

import (
	"context"
	"fmt"
	"strings"
)

// commandRunner is what the facade needs from the Runner.
type commandRunner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Client is the typed facade over the Runner. Each method builds the argument
// vector for one git subcommand, attaches the detectors for its known failure
// modes, and returns the full Result so callers can react to what actually
// happened instead of parsing text themselves.
type Client struct {
	run commandRunner
}

// NewClient returns a Client executing through the given runner.
func NewClient(run *Runner) *Client {
	return &Client{run: run}
}

// Run executes a prebuilt command. Most callers should prefer the typed
// methods; this is the escape hatch for one-off invocations.
func (c *Client) Run(ctx context.Context, cmd Command) Result {
	return c.run.Run(ctx, cmd)
}

// CurrentBranch returns the checked-out branch name, or the empty string on a
// detached HEAD.
func (c *Client) CurrentBranch(ctx context.Context, dir string) (string, error) {
	cmd := Command{
		Dir: dir, Name: "symbolic-ref", Args: []string{"--short", "-q", "HEAD"},
		TolerateExit: TolerateExitCodes(1),
	}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return "", err
	}
	return firstLine(res), nil
}

// Head returns the revision HEAD points at.
func (c *Client) Head(ctx context.Context, dir string) (string, error) {
	return c.RevParse(ctx, dir, "HEAD")
}

// RevParse resolves a revision expression to a full hash.
func (c *Client) RevParse(ctx context.Context, dir, rev string) (string, error) {
	cmd := Command{Dir: dir, Name: "rev-parse", Args: []string{"--verify", rev}}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return "", err
	}
	hash := firstLine(res)
	if hash == "" {
		return "", fmt.Errorf("rev-parse %s in %s: empty output", rev, dir)
	}
	return hash, nil
}

// MergeBase returns the best common ancestor of two revisions.
func (c *Client) MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	cmd := Command{Dir: dir, Name: "merge-base", Args: []string{a, b}}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return "", err
	}
	return firstLine(res), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Client) IsAncestor(ctx context.Context, dir, ancestor, descendant string) (bool, error) {
	cmd := Command{
		Dir: dir, Name: "merge-base", Args: []string{"--is-ancestor", ancestor, descendant},
		TolerateExit: TolerateExitCodes(1),
	}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// HasLocalChanges reports whether tracked files carry uncommitted changes.
// Untracked files do not count.
func (c *Client) HasLocalChanges(ctx context.Context, dir string) (bool, error) {
	cmd := Command{
		Dir: dir, Name: "status",
		Args: []string{"--porcelain", "--untracked-files=no"},
	}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return false, err
	}
	return len(res.Output) > 0, nil
}

// UnmergedPaths lists the paths still carrying conflict stages in the index.
func (c *Client) UnmergedPaths(ctx context.Context, dir string) ([]string, error) {
	cmd := Command{Dir: dir, Name: "ls-files", Args: []string{"--unmerged"}}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return nil, err
	}
	var paths []string
	seen := map[string]bool{}
	for _, line := range res.Output {
		// Lines look like "100644 <hash> 1\tpath"; one entry per stage.
		_, path, ok := strings.Cut(line, "\t")
		if !ok || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths, nil
}

// LocalBranches lists the repository's local branch names.
func (c *Client) LocalBranches(ctx context.Context, dir string) ([]string, error) {
	cmd := Command{
		Dir: dir, Name: "for-each-ref",
		Args: []string{"--format=%(refname:short)", "refs/heads"},
	}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return nil, err
	}
	return append([]string(nil), res.Output...), nil
}

// BranchExists reports whether a local branch with the given name exists.
func (c *Client) BranchExists(ctx context.Context, dir, name string) (bool, error) {
	cmd := Command{
		Dir: dir, Name: "show-ref",
		Args:         []string{"--verify", "--quiet", "refs/heads/" + name},
		TolerateExit: TolerateExitCodes(1),
	}
	res := c.run.Run(ctx, cmd)
	if err := resultErr(cmd, res); err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// resultErr converts an unsuccessful read into an error. Mutating commands
// return their Result directly instead.
func resultErr(cmd Command, res Result) error {
	if res.Success {
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return &CommandError{
		Dir:    cmd.Dir,
		Args:   cmd.Argv(),
		Output: res.ErrorText(),
		Err:    fmt.Errorf("exit code %d", res.ExitCode),
	}
}

func firstLine(res Result) string {
	if len(res.Output) == 0 {
		return ""
	}
	return strings.TrimSpace(res.Output[0])
}

package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Credentials serves the credential handshake for remote commands.
type Credentials interface {
	// Attach prepares one command attempt, returning environment entries that
	// route git credential prompts back to the application. refresh is true
	// on retry attempts and asks for fresh input instead of a cached answer.
	// done releases per-attempt resources and must always be called.
	Attach(ctx context.Context, refresh bool) (env []string, done func(), err error)

	// Reject discards the remembered credential after the final failed
	// attempt, so the next command starts clean.
	Reject(ctx context.Context)
}

// credentialRetries is how many extra attempts a remote command gets after
// its first authentication failure.
const credentialRetries = 2

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// GitPath is the git binary to invoke. Empty means "git" from PATH.
	GitPath string

	// Env entries are appended to the inherited environment for every
	// command. Later entries win over inherited ones.
	Env []string

	// Credentials, when set, takes part in every remote command.
	Credentials Credentials
}

// Runner starts git processes, streams their combined output and turns each
// invocation into a Result. Write commands run exclusively; read commands may
// overlap with each other but never with a write.
type Runner struct {
	cfg RunnerConfig
	log *slog.Logger

	mu sync.RWMutex
}

// NewRunner returns a Runner with the given configuration.
func NewRunner(cfg RunnerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log.With("component", "git")}
}

// Run executes the command and reports its Result. The returned Result is
// complete: output captured, lines classified, detectors evaluated. Run only
// fails through Result.Err for start failures and cancellation; a git process
// that exits non-zero is a regular unsuccessful Result.
func (r *Runner) Run(ctx context.Context, cmd Command) Result {
	if cmd.Lock == LockWrite {
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	if cmd.Remote && r.cfg.Credentials != nil {
		return r.runRemote(ctx, cmd)
	}
	return r.runOnce(ctx, cmd, nil)
}

// runRemote wraps runOnce with the credential handshake: the first failure
// with rejected credentials triggers fresh prompts for a fixed number of
// retries, and the final failure discards whatever credential was used.
func (r *Runner) runRemote(ctx context.Context, cmd Command) Result {
	creds := r.cfg.Credentials
	var res Result
	for attempt := 0; attempt <= credentialRetries; attempt++ {
		env, done, err := creds.Attach(ctx, attempt > 0)
		if err != nil {
			r.log.Warn("credential bridge unavailable, running without it",
				"command", cmd.Name, "error", err)
			return r.runOnce(ctx, cmd, nil)
		}
		res = r.runOnce(ctx, cmd, env)
		done()
		if res.Success || res.Err != nil || !res.Has(EventAuthFailed) {
			return res
		}
		r.log.Warn("authentication failed", "command", cmd.Name, "attempt", attempt+1)
	}
	creds.Reject(ctx)
	res.Err = ErrAuthFailed
	return res
}

func (r *Runner) runOnce(ctx context.Context, cmd Command, credEnv []string) Result {
	gitPath := r.cfg.GitPath
	if gitPath == "" {
		gitPath = "git"
	}
	proc := exec.Command(gitPath, cmd.Argv()...)
	proc.Dir = cmd.Dir
	proc.Env = r.commandEnv(cmd, credEnv)
	if cmd.Stdin != "" {
		proc.Stdin = strings.NewReader(cmd.Stdin)
	}
	sink := &lineSink{onLine: cmd.OnLine}
	proc.Stdout = sink
	proc.Stderr = sink
	setProcessGroup(proc)

	r.log.Debug("running", "dir", cmd.Dir, "command", cmd.String())
	if err := proc.Start(); err != nil {
		return Result{
			ExitCode: -1,
			Err:      &CommandError{Dir: cmd.Dir, Args: cmd.Argv(), Err: err},
		}
	}

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	var waitErr error
	select {
	case <-ctx.Done():
		terminateProcessGroup(proc)
		<-done
		sink.flush()
		out, errOut := sink.classified()
		return Result{
			ExitCode:    -1,
			Output:      out,
			ErrorOutput: errOut,
			Err: &CommandError{
				Dir: cmd.Dir, Args: cmd.Argv(),
				Output: sink.text(), Err: ctx.Err(),
			},
		}
	case waitErr = <-done:
	}
	sink.flush()

	exit := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{
				ExitCode: -1,
				Err: &CommandError{
					Dir: cmd.Dir, Args: cmd.Argv(),
					Output: sink.text(), Err: waitErr,
				},
			}
		}
		exit = exitErr.ExitCode()
	}

	all := sink.lines()
	out, errOut := sink.classified()
	success := exit == 0 || (cmd.TolerateExit != nil && cmd.TolerateExit(exit, all))
	if !success && len(errOut) == 0 {
		// Keep failures explainable even when git said nothing recognizable.
		if tail := outputTail(out, syntheticTailLines); tail != "" {
			errOut = strings.Split(tail, "\n")
		} else {
			errOut = []string{fmt.Sprintf("git %s exited with code %d", cmd.Name, exit)}
		}
	}

	detectors := cmd.Detect
	if cmd.Remote {
		detectors = append(append([]Detector(nil), detectors...), DetectAuthFailure())
	}
	var events []Event
	for _, detect := range detectors {
		events = append(events, detect(all)...)
	}

	if !success {
		r.log.Debug("command failed",
			"dir", cmd.Dir, "command", cmd.String(),
			"exit", exit, "errors", strings.Join(errOut, "; "))
	}
	return Result{
		Success:     success,
		ExitCode:    exit,
		Output:      out,
		ErrorOutput: errOut,
		Events:      events,
	}
}

// commandEnv merges the inherited environment with the fixed entries that
// keep git non-interactive and its messages in the C locale, then the runner,
// credential and per-command entries. Later duplicates win.
func (r *Runner) commandEnv(cmd Command, credEnv []string) []string {
	env := append(os.Environ(),
		"LC_ALL=C",
		"LANG=C",
		"GIT_TERMINAL_PROMPT=0",
	)
	env = append(env, r.cfg.Env...)
	env = append(env, credEnv...)
	return append(env, cmd.Env...)
}

// lineSink receives the combined stdout and stderr of the child and splits it
// into lines on LF and CR, so progress redraws surface as individual lines.
// Blank lines are dropped. Both process pipes share one sink, keeping arrival
// order.
type lineSink struct {
	mu     sync.Mutex
	buf    []byte
	all    []string
	onLine func(string)
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range p {
		if b == '\n' || b == '\r' {
			s.endLine()
			continue
		}
		s.buf = append(s.buf, b)
	}
	return len(p), nil
}

func (s *lineSink) endLine() {
	line := string(s.buf)
	s.buf = s.buf[:0]
	if strings.TrimSpace(line) == "" {
		return
	}
	s.all = append(s.all, line)
	if s.onLine != nil {
		s.onLine(line)
	}
}

func (s *lineSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLine()
}

func (s *lineSink) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.all...)
}

func (s *lineSink) classified() (output, errOutput []string) {
	for _, line := range s.lines() {
		if IsErrorLine(line) {
			errOutput = append(errOutput, line)
		} else {
			output = append(output, line)
		}
	}
	return output, errOutput
}

func (s *lineSink) text() string {
	return strings.Join(s.lines(), "\n")
}

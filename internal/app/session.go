package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/githerd/githerd/internal/bridge"
	"github.com/githerd/githerd/internal/config"
	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/hosting"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/rebase"
	"github.com/githerd/githerd/internal/repo"
	"github.com/githerd/githerd/internal/state"
)

// Session is one command's wired service set: the git client, the configured
// repositories, the persisted state store, the credential bridge and the
// prompts. Construction is explicit; Close releases what Open acquired.
type Session struct {
	Config *config.Config
	Log    *slog.Logger
	Git    *git.Client
	Repos  []*repo.Repository
	Store  *state.Store
	Decide prompt.Decider

	self    string
	askpass *bridge.Askpass
}

// Open wires a session from cfg. decide answers the interactive questions;
// pass a scripted policy for non-interactive runs.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, decide prompt.Decider) (*Session, error) {
	store, err := state.Open(cfg.StateDir, log)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	prompter, err := credentialPrompter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate own binary: %w", err)
	}
	askpass := bridge.NewAskpass(self, prompter, log)

	runner := git.NewRunner(git.RunnerConfig{
		GitPath:     cfg.GitPath,
		Credentials: askpass,
	}, log)
	client := git.NewClient(runner)

	repos := make([]*repo.Repository, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		r, err := repo.Open(ctx, client, root)
		if err != nil {
			askpass.Close()
			return nil, fmt.Errorf("open repository %s: %w", root, err)
		}
		repos = append(repos, r)
	}
	repo.Sort(repos)

	return &Session{
		Config:  cfg,
		Log:     log,
		Git:     client,
		Repos:   repos,
		Store:   store,
		Decide:  decide,
		self:    self,
		askpass: askpass,
	}, nil
}

// Close releases the session's resources.
func (s *Session) Close() error {
	var errs []error
	if s.askpass != nil {
		errs = append(errs, s.askpass.Close())
	}
	return errors.Join(errs...)
}

// Executable is the githerd binary path, used to point git at the bridge
// subcommands.
func (s *Session) Executable() string {
	return s.self
}

// Roots lists the session's repository roots in engine order.
func (s *Session) Roots() []string {
	roots := make([]string, len(s.Repos))
	for i, r := range s.Repos {
		roots[i] = r.Root
	}
	return roots
}

// Engine returns a multi-repository engine over the session's repositories.
// decide answers the engine's questions; pass a relay when the engine runs
// off the terminal-owning goroutine.
func (s *Session) Engine(decide prompt.Decider) *engine.Engine {
	return engine.New(s.Repos, engine.Options{
		Git:    s.Git,
		Decide: decide,
		Recent: s.Store.RecentBranches(s.Roots()),
		Log:    s.Log,
	})
}

// Machine returns the rebase state machine over the session's repositories.
// env goes into the rebase invocation, typically the sequence editor bridge.
func (s *Session) Machine(decide prompt.Decider, env []string) *rebase.Machine {
	return rebase.New(s.Repos, rebase.Options{
		Git:       s.Git,
		Decide:    decide,
		Store:     s.Store,
		Log:       s.Log,
		RebaseEnv: env,
	})
}

// credentialPrompter picks the source for remote-command credentials: the
// configured token when present, otherwise the terminal.
func credentialPrompter(ctx context.Context, cfg *config.Config, log *slog.Logger) (bridge.Prompter, error) {
	token := cfg.Token()
	if token == "" {
		return prompt.NewTerminal(), nil
	}
	client, err := hosting.NewClient(ctx, token, cfg.Auth.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("hosting client: %w", err)
	}
	return hosting.NewTokenPrompter(client, token, log), nil
}

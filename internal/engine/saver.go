package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/githerd/githerd/internal/repo"
)

// Saver shelves and restores uncommitted changes around a retried operation.
type Saver interface {
	// Save shelves the working tree of r. Saving a clean tree is a no-op.
	Save(ctx context.Context, r *repo.Repository, operation string) error

	// Restore brings back what Save shelved for r, if anything.
	Restore(ctx context.Context, r *repo.Repository) error
}

// StashSaver shelves local changes with git stash.
type StashSaver struct {
	g     Git
	log   *slog.Logger
	saved map[string]bool
}

// NewStashSaver returns a stash-backed Saver.
func NewStashSaver(g Git, log *slog.Logger) *StashSaver {
	if log == nil {
		log = slog.Default()
	}
	return &StashSaver{g: g, log: log, saved: make(map[string]bool)}
}

func (s *StashSaver) Save(ctx context.Context, r *repo.Repository, operation string) error {
	msg := fmt.Sprintf("githerd: before %s at %s", operation, time.Now().Format(time.RFC3339))
	res := s.g.StashPush(ctx, r.Root, msg)
	if !res.Success {
		return fmt.Errorf("stash %s: %s", r.Name(), res.ErrorText())
	}
	if stashedNothing(res.Output) {
		return nil
	}
	s.saved[r.Root] = true
	s.log.Info("stashed local changes", "repo", r.Name())
	return nil
}

func (s *StashSaver) Restore(ctx context.Context, r *repo.Repository) error {
	if !s.saved[r.Root] {
		return nil
	}
	delete(s.saved, r.Root)
	res := s.g.StashPop(ctx, r.Root)
	if !res.Success {
		return fmt.Errorf("unstash %s: %s", r.Name(), res.ErrorText())
	}
	s.log.Info("restored stashed changes", "repo", r.Name())
	return nil
}

// Saved reports whether a stash made by Save is still pending for root.
func (s *StashSaver) Saved(root string) bool {
	return s.saved[root]
}

func stashedNothing(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "No local changes to save") {
			return true
		}
	}
	return false
}

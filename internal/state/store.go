// Package state persists what must survive one githerd process: the live
// rebase spec and the recently used branches, both keyed by the repository
// set they belong to. A file lock serializes mutating commands across
// processes.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/githerd/githerd/internal/rebase"
)

// ErrNoRebase reports that no rebase is persisted for the root set.
var ErrNoRebase = errors.New("no rebase in progress")

const lockRetryDelay = 100 * time.Millisecond

// Store keeps JSON files under one directory. Files are replaced atomically,
// so a reader never sees a partial write.
type Store struct {
	dir  string
	lock *flock.Flock
	log  *slog.Logger
}

var _ rebase.Store = (*Store)(nil)

// Open ensures the state directory exists and returns a store over it.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, "githerd.lock")),
		log:  log.With("component", "state"),
	}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Lock takes the lock shared by every githerd process. A mutating command
// holds it for its whole run, so only one process at a time writes to the
// repositories and to the persisted state.
func (s *Store) Lock(ctx context.Context) error {
	if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return nil
}

// RLock takes the subsystem lock shared, for read-classified commands.
// Readers run alongside each other but never alongside a writer.
func (s *Store) RLock(ctx context.Context) error {
	if _, err := s.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return nil
}

// Unlock releases the lock taken by Lock or RLock.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// SaveRebase replaces the persisted spec for the spec's root set. The
// machine driving the rebase is the only writer; everyone else loads
// snapshots.
func (s *Store) SaveRebase(spec *rebase.Spec) error {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rebase spec: %w", err)
	}
	return s.writeAtomic(s.rebasePath(spec.Roots), data)
}

// LoadRebase reads the persisted spec for a root set. ErrNoRebase means none
// is stored.
func (s *Store) LoadRebase(roots []string) (*rebase.Spec, error) {
	data, err := os.ReadFile(s.rebasePath(roots))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRebase
	}
	if err != nil {
		return nil, fmt.Errorf("read rebase spec: %w", err)
	}
	var spec rebase.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode rebase spec: %w", err)
	}
	return &spec, nil
}

// ClearRebase removes the persisted spec. Clearing an absent spec is not an
// error.
func (s *Store) ClearRebase(roots []string) error {
	err := os.Remove(s.rebasePath(roots))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear rebase spec: %w", err)
	}
	return nil
}

// RebaseInProgress reports whether a spec is stored for the root set.
func (s *Store) RebaseInProgress(roots []string) bool {
	_, err := os.Stat(s.rebasePath(roots))
	return err == nil
}

func (s *Store) rebasePath(roots []string) string {
	return filepath.Join(s.dir, "rebase-"+rootSetKey(roots)+".json")
}

// rootSetKey derives a stable file key from a repository set, insensitive to
// ordering.
func rootSetKey(roots []string) string {
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)
	h := fnv.New32a()
	for _, root := range sorted {
		_, _ = h.Write([]byte(root))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%08x", h.Sum32())
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, errors.Join(werr, cerr))
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

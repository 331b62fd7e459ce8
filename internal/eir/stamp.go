package eir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Stages recorded by the stamp store.
const (
	StagePatch = "patch"
	StageBuild = "build"
)

// StampStore records durable idempotence markers, one file per completed
// (package, phase, stage) unit. Presence of a stamp means the unit has
// fully succeeded at least once; the store never clears a stamp on its own.
type StampStore struct {
	dir string

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func NewStampStore(dir string) *StampStore {
	return &StampStore{dir: dir, keys: make(map[string]*sync.Mutex)}
}

func stampKey(pkg, phase, stage string) string {
	return fmt.Sprintf("%s-%s.%s", phase, pkg, stage)
}

func (s *StampStore) path(pkg, phase, stage string) string {
	return filepath.Join(s.dir, stampKey(pkg, phase, stage))
}

// keyLock returns the per-key mutex, creating it on first use. Check-then-act
// sequences on the same key must never interleave under parallel execution.
func (s *StampStore) keyLock(pkg, phase, stage string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stampKey(pkg, phase, stage)
	l, ok := s.keys[key]
	if !ok {
		l = &sync.Mutex{}
		s.keys[key] = l
	}
	return l
}

// Exists reports whether the unit has completed.
func (s *StampStore) Exists(pkg, phase, stage string) bool {
	_, err := os.Stat(s.path(pkg, phase, stage))
	return err == nil
}

// Mark records completion. Marking an already-marked unit is a no-op.
func (s *StampStore) Mark(pkg, phase, stage string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(pkg, phase, stage), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Clear removes the stamps for a (package, phase). This is the explicit
// "clean" action; the pipeline itself never calls it.
func (s *StampStore) Clear(pkg, phase string) error {
	for _, stage := range []string{StagePatch, StageBuild} {
		if err := os.Remove(s.path(pkg, phase, stage)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Once runs fn only if the unit has no stamp yet, and marks the stamp only
// after fn returns nil. A failing fn leaves the unit unmarked so a re-run
// retries it from scratch.
func (s *StampStore) Once(pkg, phase, stage string, fn func() error) error {
	l := s.keyLock(pkg, phase, stage)
	l.Lock()
	defer l.Unlock()

	if s.Exists(pkg, phase, stage) {
		debugf("stamp %s present, skipping\n", stampKey(pkg, phase, stage))
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	return s.Mark(pkg, phase, stage)
}

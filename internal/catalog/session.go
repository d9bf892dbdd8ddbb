package catalog

import (
	"fmt"
	"sync"

	"github.com/tuannm99/rowstore/internal/errs"
)

// Session tracks the database a caller works in.
type Session struct {
	cat *Catalog

	mu      sync.RWMutex
	current string
}

// NewSession starts in defaultDB without checking that it exists.
func NewSession(cat *Catalog, defaultDB string) *Session {
	return &Session{cat: cat, current: defaultDB}
}

// Use switches to name, which must exist.
func (s *Session) Use(name string) error {
	ok, err := s.cat.DatabaseExists(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("catalog: database %s: %w", name, errs.ErrNotFound)
	}
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	return nil
}

// Current returns the database in use.
func (s *Session) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

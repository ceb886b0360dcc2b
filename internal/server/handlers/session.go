// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"context"
	"sync"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/playback"
)

// SyncFactory builds a playback synchronizer bound to a project.
type SyncFactory func(*composition.Project) *playback.Synchronizer

// Session is the one project currently open for editing and playback.
// Opening another project stops the previous synchronizer first.
type Session struct {
	mu      sync.Mutex
	project *composition.Project
	sync    *playback.Synchronizer
	newSync SyncFactory
}

// NewSession creates an empty session.
func NewSession(newSync SyncFactory) *Session {
	return &Session{newSync: newSync}
}

// Open makes the project current.
func (s *Session) Open(ctx context.Context, p *composition.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sync != nil {
		if err := s.sync.Stop(ctx); err != nil {
			return err
		}
	}
	s.project = p
	s.sync = s.newSync(p)
	return nil
}

// Current returns the open project and its synchronizer, or nils.
func (s *Session) Current() (*composition.Project, *playback.Synchronizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project, s.sync
}

package session

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
)

var ErrSessionNotFound = errors.New("session not found")

// Config tunes the session registry.
type Config struct {
	// Widget is the template every new shell is built from.
	Widget widgetService.Options
	// IdleTTL evicts sessions nobody touched for this long. Zero disables eviction.
	IdleTTL time.Duration
	Logger  *zap.Logger
}

// Service keeps the live widget sessions of this process in memory.
type Service struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*widgetService.Shell
}

// NewService bootstraps an empty registry.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Widget.Logger == nil {
		cfg.Widget.Logger = cfg.Logger
	}
	return &Service{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*widgetService.Shell),
	}
}

// CreateSession provisions a closed widget session.
func (s *Service) CreateSession(_ context.Context) (*widgetService.Shell, error) {
	shell := widgetService.NewShell(uuid.NewString(), s.cfg.Widget)

	s.mu.Lock()
	s.sessions[shell.ID()] = shell
	s.mu.Unlock()

	s.logger.Info("widget session created", zap.String("session_id", shell.ID()))
	return shell, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*widgetService.Shell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shell, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return shell, nil
}

// DeleteSession shuts a session down and forgets it.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	shell, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	shell.Shutdown()
	s.logger.Info("widget session deleted", zap.String("session_id", sessionID))
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep shuts down sessions idle since before now-IdleTTL and returns how many it removed.
// Shells are inspected without holding the registry lock.
func (s *Service) Sweep(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTTL)

	s.mu.RLock()
	candidates := maps.Clone(s.sessions)
	s.mu.RUnlock()

	var expired []*widgetService.Shell
	for id, shell := range candidates {
		if !shell.LastActive().Before(cutoff) {
			continue
		}
		s.mu.Lock()
		if s.sessions[id] == shell {
			delete(s.sessions, id)
			expired = append(expired, shell)
		}
		s.mu.Unlock()
	}

	for _, shell := range expired {
		shell.Shutdown()
		s.logger.Info("widget session expired", zap.String("session_id", shell.ID()))
	}
	return len(expired)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.cfg.IdleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Sweep(t.UTC()); n > 0 {
				s.logger.Debug("janitor sweep", zap.Int("expired", n), zap.Int("remaining", s.Count()))
			}
		}
	}
}

// Shutdown stops every live session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*widgetService.Shell)
	s.mu.Unlock()

	for _, shell := range sessions {
		shell.Shutdown()
	}
}

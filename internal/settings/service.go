package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// ThemeApplier reacts to the active theme, e.g. by swapping the root class of
// connected pages.
type ThemeApplier interface {
	ApplyTheme(theme Theme)
}

type ThemeApplierFunc func(theme Theme)

func (f ThemeApplierFunc) ApplyTheme(theme Theme) { f(theme) }

// Service is the single owner of the current settings. Every change is
// persisted immediately.
type Service struct {
	backend Backend
	key     string
	logger  *logging.Logger

	// writeMu orders whole writes: swap, persist and theme apply. mu only
	// guards the in-memory value so Get never waits on the backend.
	writeMu sync.Mutex

	mu       sync.RWMutex
	current  Settings
	appliers []ThemeApplier
}

func NewService(backend Backend, key string, logger *logging.Logger) *Service {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		backend: backend,
		key:     key,
		logger:  logger,
		current: Defaults(),
	}
}

func (s *Service) AddThemeApplier(a ThemeApplier) {
	if a == nil {
		return
	}
	s.mu.Lock()
	s.appliers = append(s.appliers, a)
	s.mu.Unlock()
}

// Load reads the persisted value and merges it over the defaults. A missing
// or malformed value yields the defaults. A backend failure also yields the
// defaults and is returned.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded := Defaults()
	var loadErr error

	data, err := s.backend.Load(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		s.logger.Error("failed to load settings", "key", s.key, "error", err)
		loadErr = fmt.Errorf("settings: load: %w", err)
	default:
		merged, mergeErr := Merge(loaded, data)
		if mergeErr != nil {
			s.logger.Warn("discarding malformed settings", "key", s.key, "error", mergeErr)
		} else {
			loaded = merged
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.applyTheme(loaded.Theme)
	return loaded, loadErr
}

func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) ThemeClass() string {
	return s.Get().ThemeClass()
}

// Update applies mutate to a copy of the current settings, makes the result
// current and persists it. A persistence error is returned but the new value
// stays in effect.
func (s *Service) Update(ctx context.Context, mutate func(*Settings)) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	previous := s.current
	next := previous
	if mutate != nil {
		mutate(&next)
	}
	s.current = next
	s.mu.Unlock()

	return s.commit(ctx, previous, next)
}

// UpdateJSON merges a partial JSON document over the current settings.
// Malformed input leaves the settings untouched.
func (s *Service) UpdateJSON(ctx context.Context, raw []byte) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	previous := s.current
	next, err := Merge(previous, raw)
	if err != nil {
		s.mu.Unlock()
		return previous, err
	}
	s.current = next
	s.mu.Unlock()

	return s.commit(ctx, previous, next)
}

func (s *Service) commit(ctx context.Context, previous, next Settings) (Settings, error) {
	err := s.persist(ctx, next)
	if next.Theme != previous.Theme {
		s.applyTheme(next.Theme)
	}
	return next, err
}

func (s *Service) persist(ctx context.Context, value Settings) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := s.backend.Save(ctx, s.key, data); err != nil {
		s.logger.Error("failed to persist settings", "key", s.key, "error", err)
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

func (s *Service) applyTheme(theme Theme) {
	s.mu.RLock()
	appliers := append([]ThemeApplier(nil), s.appliers...)
	s.mu.RUnlock()
	for _, a := range appliers {
		a.ApplyTheme(theme)
	}
}

package manager

import (
	"context"

	"github.com/google/uuid"
)

// Switch kicks off an async load of language and returns an operation ID.
// Callers can poll Status() to observe state transitions.
func (m *Manager) Switch(ctx context.Context, language string) (string, error) {
	lang := m.normalize(language)
	if _, err := m.config(lang); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	op := uuid.NewString()
	m.publish("switch_start", lang, map[string]any{"op": op})
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		// Detached so the load outlives the request that started it.
		if _, _, err := m.Load(context.Background(), lang, ""); err != nil {
			m.log.Error().Err(err).Str("op", op).Str("language", lang).Msg("manager event=switch_failed")
			return
		}
		m.publish("switch_done", lang, map[string]any{"op": op})
	}()
	return op, nil
}

// Ensure makes language resident.
func (m *Manager) Ensure(ctx context.Context, language string) error {
	_, _, err := m.Load(ctx, language, "")
	return err
}

func (m *Manager) unloadDetached(lang string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.Unload(lang)
	}()
}

// PerformanceMode returns the current mode.
func (m *Manager) PerformanceMode() PerformanceMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetPerformanceMode applies mode and returns the mode in effect. Unknown
// names select balanced.
func (m *Manager) SetPerformanceMode(mode string) PerformanceMode {
	pm, ok := ParsePerformanceMode(mode)
	if !ok {
		m.log.Warn().Str("mode", mode).Msg("manager event=invalid_performance_mode using=balanced")
	}
	m.mu.Lock()
	m.mode = pm
	m.mu.Unlock()
	m.publish("performance_mode", "", map[string]any{"mode": string(pm)})
	return pm
}

// SetAuthToken sets the token used for gated model downloads.
func (m *Manager) SetAuthToken(token string) {
	m.mu.Lock()
	m.authToken = token
	m.mu.Unlock()
}

// Shutdown waits for background operations and unloads every model. It
// returns ctx.Err() if ctx ends before background work finishes.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.bg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	n := m.UnloadAll()
	m.log.Info().Int("unloaded", n).Msg("manager event=shutdown")
	return err
}

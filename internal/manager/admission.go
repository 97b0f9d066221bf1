package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns the instance and a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, lang string) (*Instance, func(), error) {
	noop := func() {}
	inst, err := m.admissible(lang)
	if err != nil {
		return nil, noop, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	// Try to reserve a queue slot with timeout
	select {
	case inst.queueCh <- struct{}{}:
	case <-ctx.Done():
		return nil, noop, ctx.Err()
	case <-timer.C:
		m.publish("backpressure", lang, map[string]any{"stage": "queue"})
		return nil, noop, tooBusyError{language: lang}
	}

	// Wait to acquire the single in-flight slot
	select {
	case inst.genCh <- struct{}{}:
	case <-ctx.Done():
		<-inst.queueCh
		return nil, noop, ctx.Err()
	case <-timer.C:
		<-inst.queueCh
		m.publish("backpressure", lang, map[string]any{"stage": "inflight"})
		return nil, noop, tooBusyError{language: lang}
	}
	release := func() { <-inst.genCh; <-inst.queueCh }

	// The instance may have started draining while we waited.
	if _, err := m.admissible(lang); err != nil || m.instanceFor(lang) != inst {
		release()
		if err == nil {
			err = modelNotFoundError{language: lang}
		}
		return nil, noop, err
	}
	m.mu.Lock()
	inst.LastUsed = time.Now()
	m.mu.Unlock()
	return inst, release, nil
}

func (m *Manager) admissible(lang string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances[lang]
	switch {
	case inst == nil || inst.State == StateLoading:
		return nil, modelNotFoundError{language: lang}
	case inst.State == StateDraining:
		return nil, tooBusyError{language: lang, draining: true}
	}
	return inst, nil
}

func (m *Manager) instanceFor(lang string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[lang]
}

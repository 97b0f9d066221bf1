package manager

import (
	"runtime"
	"runtime/debug"
	"time"

	"codebuddy/internal/backend"
)

// Unload drains and releases language. It returns false when nothing was
// resident. Failures while releasing are logged, never returned.
func (m *Manager) Unload(language string) bool {
	lang := m.normalize(language)
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.unloadLocked(lang, "manual")
}

// UnloadAll releases every resident language.
func (m *Manager) UnloadAll() int {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.RLock()
	langs := make([]string, 0, len(m.instances))
	for lang := range m.instances {
		langs = append(langs, lang)
	}
	m.mu.RUnlock()
	n := 0
	for _, lang := range langs {
		if m.unloadLocked(lang, "shutdown") {
			n++
		}
	}
	return n
}

// unloadLocked implements Unload. Caller holds opMu.
//   - Sets the instance to draining so new generations are turned away.
//   - Waits up to drainTimeout for in-flight and queued work to finish.
//   - Offloads and closes the model, removes the entry and reclaims memory.
func (m *Manager) unloadLocked(lang, reason string) (unloaded bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("language", lang).Msg("manager event=unload_panic")
		}
	}()

	m.mu.Lock()
	inst := m.instances[lang]
	if inst == nil {
		m.mu.Unlock()
		return false
	}
	inst.State = StateDraining
	m.mu.Unlock()
	m.publish("unload_start", lang, map[string]any{"reason": reason})

	defer func() {
		m.mu.Lock()
		delete(m.instances, lang)
		m.mu.Unlock()
		m.metrics.resident.WithLabelValues(lang).Set(0)
	}()

	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen, inflight := len(inst.queueCh), len(inst.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.publish("unload_timeout", lang, map[string]any{"inflight": inflight, "queue": qlen})
			m.log.Warn().Str("language", lang).Int("inflight", inflight).Int("queue", qlen).Msg("manager event=unload_timeout")
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.closeModel(lang, inst.model)
	m.mu.Lock()
	inst.model = nil
	inst.tokenizer = nil
	m.counts.unloads++
	m.mu.Unlock()
	m.reclaim()

	m.metrics.unloads.WithLabelValues(lang, reason).Inc()
	m.publish("unload_done", lang, map[string]any{"reason": reason})
	m.log.Info().Str("language", lang).Str("reason", reason).Msg("manager event=unload_done")
	return true
}

func (m *Manager) closeModel(lang string, mdl backend.Model) {
	if mdl == nil {
		return
	}
	if err := mdl.Offload(); err != nil {
		m.log.Warn().Err(err).Str("language", lang).Msg("manager event=offload_failed")
	}
	if err := mdl.Close(); err != nil {
		m.log.Warn().Err(err).Str("language", lang).Msg("manager event=close_failed")
	}
}

// reclaim runs three collection cycles, returns freed memory to the OS and
// asks the backend to release cached device memory.
func (m *Manager) reclaim() {
	for i := 0; i < 3; i++ {
		runtime.GC()
	}
	debug.FreeOSMemory()
	if r, ok := m.backend.(backend.DeviceReclaimer); ok {
		if err := r.ReclaimDevice(); err != nil {
			m.log.Debug().Err(err).Msg("manager event=device_reclaim_failed")
		}
	}
}

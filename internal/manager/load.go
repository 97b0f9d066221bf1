package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/internal/quant"
	"codebuddy/internal/workpool"
)

// Load makes language resident and returns its handles. It is idempotent:
// a resident language is returned as is. Any other resident language is
// unloaded first. authToken overrides the configured token for this load.
func (m *Manager) Load(ctx context.Context, language, authToken string) (backend.Model, backend.Tokenizer, error) {
	lang := m.normalize(language)
	cfg, err := m.config(lang)
	if err != nil {
		return nil, nil, err
	}
	if mdl, tok, ok := m.residentHandles(lang); ok {
		return mdl, tok, nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	if mdl, tok, ok := m.residentHandles(lang); ok {
		return mdl, tok, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.evictOthersLocked(lang)

	m.mu.Lock()
	token := authToken
	if token == "" {
		token = m.authToken
	}
	inst := &Instance{Language: lang, ModelID: cfg.ModelID, State: StateLoading}
	m.instances[lang] = inst
	m.mu.Unlock()

	start := time.Now()
	m.publish("ensure_start", lang, map[string]any{"model": cfg.ModelID})
	m.log.Info().Str("language", lang).Str("model", cfg.ModelID).Msg("manager event=ensure_start")

	opts := backend.LoadOptions{AuthToken: token, CacheDir: m.cacheDir, Capabilities: m.caps}
	tokFut := workpool.Go(ctx, m.tokPool, func(ctx context.Context) (backend.Tokenizer, error) {
		return m.backend.LoadTokenizer(ctx, cfg.ModelID, opts)
	})
	mdl, spec, err := m.runLadder(ctx, lang, cfg.ModelID, opts)
	tok, tokErr := tokFut.Wait(ctx)
	if err == nil && tokErr != nil {
		err = fmt.Errorf("load tokenizer %s: %w", cfg.ModelID, tokErr)
		m.closeModel(lang, mdl)
		m.reclaim()
	}
	if err != nil {
		m.mu.Lock()
		delete(m.instances, lang)
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.publish("ensure_error", lang, map[string]any{"error": err.Error()})
		m.log.Error().Err(err).Str("language", lang).Msg("manager event=ensure_error")
		return nil, nil, err
	}

	if sp := tok.Special(); sp.Pad < 0 && sp.EOS >= 0 {
		tok.SetPad(sp.EOS)
	}

	now := time.Now()
	m.mu.Lock()
	inst.State = StateResident
	inst.Spec = spec
	inst.LoadedAt = now
	inst.LastUsed = now
	inst.model = mdl
	inst.tokenizer = tok
	inst.genCh = make(chan struct{}, 1)
	inst.queueCh = make(chan struct{}, m.maxQueueDepth)
	m.lastErr = ""
	m.counts.loads++
	m.mu.Unlock()

	m.metrics.loads.WithLabelValues(lang, strconv.Itoa(spec.Rung)).Inc()
	m.metrics.resident.WithLabelValues(lang).Set(1)
	m.publish("ensure_ready", lang, map[string]any{"rung": spec.Rung, "precision": string(spec.Precision), "elapsed_ms": time.Since(start).Milliseconds()})
	m.log.Info().Str("language", lang).Stringer("spec", spec).Dur("elapsed", time.Since(start)).Msg("manager event=ensure_ready")
	return mdl, tok, nil
}

func (m *Manager) residentHandles(lang string) (backend.Model, backend.Tokenizer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances[lang]
	if inst == nil || inst.State != StateResident {
		return nil, nil, false
	}
	return inst.model, inst.tokenizer, true
}

// runLadder tries each quantization rung in order, reclaiming memory after
// every failure. A missing runtime stops the ladder early.
func (m *Manager) runLadder(ctx context.Context, lang, modelID string, opts backend.LoadOptions) (backend.Model, quant.Spec, error) {
	var errs []error
	qopts := quant.Options{OffloadDir: m.offloadDir}
	for attempt := 1; ; attempt++ {
		spec, ok := quant.Select(m.caps, attempt, qopts)
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, quant.Spec{}, err
		}
		mdl, err := m.backend.LoadModel(ctx, modelID, spec, opts)
		if err == nil {
			return mdl, spec, nil
		}
		errs = append(errs, fmt.Errorf("rung %d (%s): %w", spec.Rung, spec.Precision, err))
		m.metrics.loadFailures.WithLabelValues(lang, strconv.Itoa(spec.Rung)).Inc()
		m.publish("load_attempt_failed", lang, map[string]any{
			"rung":      spec.Rung,
			"precision": string(spec.Precision),
			"oom":       backend.IsOutOfMemory(err),
			"error":     err.Error(),
		})
		m.log.Warn().Err(err).Str("language", lang).Stringer("spec", spec).Msg("manager event=load_attempt_failed")
		m.reclaim()

		if errors.Is(err, backend.ErrUnavailable) {
			return nil, quant.Spec{}, ErrDependencyUnavailable(err.Error())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, quant.Spec{}, ctxErr
		}
	}
	return nil, quant.Spec{}, loadError{language: lang, err: errors.Join(errs...)}
}

// evictOthersLocked unloads every language except keep. Caller holds opMu.
func (m *Manager) evictOthersLocked(keep string) {
	m.mu.RLock()
	var others []string
	for lang := range m.instances {
		if lang != keep {
			others = append(others, lang)
		}
	}
	m.mu.RUnlock()
	for _, lang := range others {
		m.publish("evict", lang, map[string]any{"for": keep})
		m.log.Info().Str("language", lang).Str("for", keep).Msg("manager event=evict")
		if m.unloadLocked(lang, "evict") {
			m.mu.Lock()
			m.counts.evictions++
			m.mu.Unlock()
			m.metrics.evictions.WithLabelValues(lang).Inc()
		}
	}
}

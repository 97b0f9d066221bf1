package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/internal/langdetect"
	"codebuddy/internal/postprocess"
	"codebuddy/internal/workpool"
	"codebuddy/pkg/types"
)

const (
	primaryTopK     = 50
	primaryTopP     = 0.95
	primaryNumBeams = 2
	// admissionRetries bounds Load/admit cycles lost to a concurrent unload.
	admissionRetries = 3
)

// Generate produces code for req and emits exactly one final chunk. The
// language is detected from the prompt when req.Language is empty. A failed
// primary run is retried once with conservative settings.
func (m *Manager) Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error {
	req = withDefaults(req)
	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	if err := m.validate.Struct(req); err != nil {
		return invalidRequestError{err: err}
	}
	if req.Language == "auto" || req.Language == "auto detect" {
		req.Language = ""
	}
	lang := req.Language
	if lang == "" {
		lang = langdetect.Detect(req.Prompt)
	}
	if _, err := m.config(lang); err != nil {
		return err
	}

	inst, release, err := m.acquire(ctx, lang)
	if err != nil {
		return err
	}
	start := time.Now()
	code, err := m.run(ctx, inst, req)
	release()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.setLastError(err)
	}
	m.metrics.genDuration.WithLabelValues(lang, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		m.log.Error().Err(err).Str("language", lang).Msg("manager event=generation_failed")
		return err
	}

	emitErr := emit(types.Chunk{Kind: types.ChunkFinal, Text: code, Language: lang})
	if m.PerformanceMode() == ModeMemory {
		m.unloadDetached(lang)
	}
	return emitErr
}

func withDefaults(req types.GenerationRequest) types.GenerationRequest {
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxNewTokens == 0 {
		req.MaxNewTokens = defaultMaxNewTokens
	}
	if req.RepetitionPenalty == 0 {
		req.RepetitionPenalty = defaultRepetitionPenalty
	}
	return req
}

// acquire ensures residency and admits the caller, retrying when the
// instance is unloaded between the two steps.
func (m *Manager) acquire(ctx context.Context, lang string) (*Instance, func(), error) {
	var lastErr error
	for i := 0; i < admissionRetries; i++ {
		if _, _, err := m.Load(ctx, lang, ""); err != nil {
			return nil, nil, err
		}
		inst, release, err := m.beginGeneration(ctx, lang)
		if err == nil {
			return inst, release, nil
		}
		if !IsModelNotFound(err) && !isDraining(err) {
			if IsTooBusy(err) {
				m.log.Warn().Str("language", lang).Msg("manager event=backpressure")
			}
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, tooBusyError{language: lang, draining: isDraining(lastErr)}
}

func (m *Manager) run(ctx context.Context, inst *Instance, req types.GenerationRequest) (string, error) {
	text, err := m.formatter.Format(req.Prompt, req.History, inst.Language)
	if err != nil {
		return "", configError{msg: err.Error()}
	}
	raw, err := m.generatePrimary(ctx, inst, text, req)
	if err == nil {
		return postprocess.Clean(raw), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	m.mu.Lock()
	m.counts.fallbacks++
	m.mu.Unlock()
	m.metrics.fallbacks.WithLabelValues(inst.Language).Inc()
	m.publish("generation_fallback", inst.Language, map[string]any{"error": err.Error()})
	m.log.Warn().Err(err).Str("language", inst.Language).Msg("manager event=generation_fallback")

	raw, ferr := m.generateSafe(ctx, inst, text, req)
	if ferr != nil {
		return "", generationError{language: inst.Language, primary: err, fallback: ferr}
	}
	return postprocess.Clean(raw), nil
}

func (m *Manager) generatePrimary(ctx context.Context, inst *Instance, text string, req types.GenerationRequest) (string, error) {
	tok := inst.tokenizer
	enc, err := workpool.Submit(ctx, m.tokPool, func(ctx context.Context) (backend.Encoding, error) {
		return tok.Encode(ctx, text, m.maxInputTokens)
	})
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	enc = enc.TruncateLeft(m.maxInputTokens)

	seq, err := inst.model.Generate(ctx, enc, backend.SamplingParams{
		DoSample:          true,
		Temperature:       req.Temperature,
		RepetitionPenalty: req.RepetitionPenalty,
		TopK:              primaryTopK,
		TopP:              primaryTopP,
		NumBeams:          primaryNumBeams,
		EarlyStopping:     false,
		MaxNewTokens:      req.MaxNewTokens,
		PadTokenID:        tok.Special().Pad,
		UseCache:          true,
		MixedPrecision:    true,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	ids, err := newSpan(seq, enc.Len())
	if err != nil {
		return "", err
	}
	out, err := workpool.Submit(ctx, m.tokPool, func(ctx context.Context) (string, error) {
		return tok.Decode(ctx, ids, true)
	})
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// generateSafe tokenizes and decodes on the calling goroutine and uses the
// minimal sampling arguments.
func (m *Manager) generateSafe(ctx context.Context, inst *Instance, text string, req types.GenerationRequest) (string, error) {
	tok := inst.tokenizer
	enc, err := tok.Encode(ctx, text, m.maxInputTokens)
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	enc = enc.TruncateLeft(m.maxInputTokens)
	seq, err := inst.model.Generate(ctx, enc, backend.SamplingParams{
		DoSample:          true,
		Temperature:       req.Temperature,
		RepetitionPenalty: req.RepetitionPenalty,
		NumBeams:          1,
		MaxNewTokens:      req.MaxNewTokens,
		PadTokenID:        tok.Special().Pad,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	ids, err := newSpan(seq, enc.Len())
	if err != nil {
		return "", err
	}
	out, err := tok.Decode(ctx, ids, true)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

func newSpan(seq []int, inputLen int) ([]int, error) {
	if len(seq) < inputLen {
		return nil, fmt.Errorf("generate: sequence of %d tokens is shorter than the %d-token input", len(seq), inputLen)
	}
	return seq[inputLen:], nil
}

// DetectLanguage classifies prompt.
func (m *Manager) DetectLanguage(prompt string) string { return langdetect.Detect(prompt) }

// FormatCode wraps text in a fence for language on the auxiliary pool.
func (m *Manager) FormatCode(ctx context.Context, text, language string) (string, error) {
	return workpool.Submit(ctx, m.auxPool, func(context.Context) (string, error) {
		return postprocess.FormatCode(text, language), nil
	})
}

package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/pkg/types"
)

const cleanedReply = "def add(a, b):\n    return a + b"

func collect(chunks *[]types.Chunk) func(types.Chunk) error {
	return func(c types.Chunk) error {
		*chunks = append(*chunks, c)
		return nil
	}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(Config{Models: testConfigs()}); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsDuplicateLanguages(t *testing.T) {
	cfgs := append(testConfigs(), types.ModelConfig{Language: "Python", ModelID: testModelID})
	if _, err := New(Config{Models: cfgs, Backend: &fakeBackend{}}); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(t, b)
	ctx := testContext(t)

	m1, t1, err := m.Load(ctx, "python", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m2, t2, err := m.Load(ctx, "Python", "")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if m1 != m2 || t1 != t2 {
		t.Fatalf("expected the same handles on repeated load")
	}
	if n := b.loadCalls(); n != 1 {
		t.Fatalf("expected 1 backend load, got %d", n)
	}
	if !m.IsLoaded("python") {
		t.Fatalf("python should be resident")
	}
}

func TestLoadEvictsOtherLanguage(t *testing.T) {
	b := &fakeBackend{}
	m, pub := newTestManager(t, b)
	ctx := testContext(t)

	if _, _, err := m.Load(ctx, "python", ""); err != nil {
		t.Fatalf("load python: %v", err)
	}
	if _, _, err := m.Load(ctx, "powershell", ""); err != nil {
		t.Fatalf("load powershell: %v", err)
	}
	if m.IsLoaded("python") {
		t.Fatalf("python should have been evicted")
	}
	if !m.IsLoaded("powershell") {
		t.Fatalf("powershell should be resident")
	}
	py := b.model(0)
	if !py.offloaded.Load() || !py.closed.Load() {
		t.Fatalf("evicted model should be offloaded and closed")
	}
	if got := pub.Count("evict"); got != 1 {
		t.Fatalf("expected 1 evict event, got %d", got)
	}
	st := m.Status()
	if len(st.Instances) != 1 || st.Instances[0].Language != "powershell" {
		t.Fatalf("unexpected instances: %+v", st.Instances)
	}
	if st.EvictionsTotal != 1 || st.LoadsTotal != 2 {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

func TestLoadUnknownLanguage(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{})
	if _, _, err := m.Load(testContext(t), "cobol", ""); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadEmptyLanguageUsesDefault(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{})
	if _, _, err := m.Load(testContext(t), "", ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.IsLoaded("python") {
		t.Fatalf("default language should be python")
	}
}

func TestLadderFallsThroughToLaterRung(t *testing.T) {
	b := &fakeBackend{failRungs: map[int]error{1: errOOM, 2: errOOM}}
	m, pub := newTestManager(t, b)

	if _, _, err := m.Load(testContext(t), "python", ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := b.loadCalls(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if got := pub.Count("load_attempt_failed"); got != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", got)
	}
	if b.reclaims.Load() < 2 {
		t.Fatalf("expected a reclaim pass after each failure, got %d", b.reclaims.Load())
	}
	st := m.Status()
	if st.Instances[0].Rung != 3 || st.Instances[0].Precision != "int8" {
		t.Fatalf("expected rung 3 int8, got %+v", st.Instances[0])
	}
	if st.Instances[0].PromptFamily != "instruct_chat" {
		t.Fatalf("expected instruct_chat prompt family, got %q", st.Instances[0].PromptFamily)
	}
}

func TestLadderExhaustedFailsFatally(t *testing.T) {
	b := &fakeBackend{failRungs: map[int]error{1: errOOM, 2: errOOM, 3: errors.New("bad weights")}}
	m, _ := newTestManager(t, b)

	_, _, err := m.Load(testContext(t), "python", "")
	if !IsLoadFailed(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	for _, want := range []string{"rung 1", "rung 2", "rung 3", "bad weights"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
	if !errors.Is(err, backend.ErrOutOfMemory) {
		t.Fatalf("joined error should wrap ErrOutOfMemory")
	}
	if m.IsLoaded("python") || len(m.Status().Instances) != 0 {
		t.Fatalf("no instance should remain after a failed load")
	}
	if m.Status().LastError == "" {
		t.Fatalf("last error should be recorded")
	}
}

func TestLadderStopsWhenRuntimeUnavailable(t *testing.T) {
	b := &fakeBackend{failRungs: map[int]error{1: fmt.Errorf("no llama-server: %w", backend.ErrUnavailable)}}
	m, _ := newTestManager(t, b)

	_, _, err := m.Load(testContext(t), "python", "")
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if n := b.loadCalls(); n != 1 {
		t.Fatalf("expected the ladder to stop after 1 attempt, got %d", n)
	}
}

func TestTokenizerFailureReleasesModel(t *testing.T) {
	b := &fakeBackend{tokErr: errors.New("no tokenizer.json")}
	m, _ := newTestManager(t, b)

	if _, _, err := m.Load(testContext(t), "python", ""); err == nil {
		t.Fatalf("expected tokenizer error")
	}
	if !b.model(0).closed.Load() {
		t.Fatalf("model should be closed when the tokenizer fails")
	}
	if m.IsLoaded("python") {
		t.Fatalf("python should not be resident")
	}
}

func TestLoadSetsPadToEOS(t *testing.T) {
	b := &fakeBackend{noPad: true}
	m, _ := newTestManager(t, b)

	_, tok, err := m.Load(testContext(t), "python", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sp := tok.Special(); sp.Pad != sp.EOS {
		t.Fatalf("expected pad=%d, got %d", sp.EOS, sp.Pad)
	}
}

func TestUnload(t *testing.T) {
	b := &fakeBackend{}
	m, pub := newTestManager(t, b)

	if m.Unload("python") {
		t.Fatalf("unload of an absent language should return false")
	}
	if _, _, err := m.Load(testContext(t), "python", ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.Unload("python") {
		t.Fatalf("unload should return true")
	}
	if m.IsLoaded("python") {
		t.Fatalf("python should be unloaded")
	}
	if !b.model(0).closed.Load() {
		t.Fatalf("model should be closed")
	}
	if pub.Count("unload_done") != 1 {
		t.Fatalf("expected unload_done event")
	}
	if m.Unload("python") {
		t.Fatalf("second unload should return false")
	}
}

func TestGenerateDetectsLanguageAndCleans(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(t, b)

	var chunks []types.Chunk
	err := m.Generate(testContext(t), types.GenerationRequest{Prompt: "Get-ChildItem all logs in a folder"}, collect(&chunks))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Kind != types.ChunkFinal || c.Language != "powershell" || c.Text != cleanedReply {
		t.Fatalf("unexpected chunk: %+v", c)
	}
	calls := b.model(0).generateCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one generate call, got %d", len(calls))
	}
	p := calls[0]
	if !p.DoSample || p.NumBeams != 2 || p.TopK != 50 || p.TopP != 0.95 || !p.MixedPrecision || p.EarlyStopping {
		t.Fatalf("unexpected primary params: %+v", p)
	}
	if p.Temperature != 0.2 || p.MaxNewTokens != 1024 || p.RepetitionPenalty != 1.1 {
		t.Fatalf("defaults not applied: %+v", p)
	}
}

func TestGenerateTruncatesInputLeft(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(t, b, func(c *Config) { c.MaxInputTokens = 4 })

	err := m.Generate(testContext(t), types.GenerationRequest{Prompt: "one two three four five six seven", Language: "python"}, func(types.Chunk) error { return nil })
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	mdl := b.model(0)
	mdl.mu.Lock()
	in := mdl.inputs[0]
	mdl.mu.Unlock()
	if in.Len() != 4 {
		t.Fatalf("expected 4 input tokens, got %d", in.Len())
	}
}

func TestGenerateFallbackRunsOnce(t *testing.T) {
	b := &fakeBackend{newModel: func(fm *fakeModel) {
		fm.fail = func(p backend.SamplingParams) error {
			if p.NumBeams > 1 {
				return errors.New("beam search unsupported")
			}
			return nil
		}
	}}
	m, pub := newTestManager(t, b)

	var chunks []types.Chunk
	if err := m.Generate(testContext(t), types.GenerationRequest{Prompt: "reverse a list", Language: "python"}, collect(&chunks)); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != cleanedReply {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	calls := b.model(0).generateCalls()
	if len(calls) != 2 {
		t.Fatalf("expected primary + fallback, got %d calls", len(calls))
	}
	if fb := calls[1]; fb.NumBeams != 1 || fb.MixedPrecision || fb.TopK != 0 {
		t.Fatalf("unexpected fallback params: %+v", fb)
	}
	if pub.Count("generation_fallback") != 1 || m.Status().FallbacksTotal != 1 {
		t.Fatalf("expected exactly one fallback")
	}
}

func TestGenerateBothPathsFail(t *testing.T) {
	b := &fakeBackend{newModel: func(fm *fakeModel) {
		fm.fail = func(backend.SamplingParams) error { return errors.New("device lost") }
	}}
	m, _ := newTestManager(t, b)

	called := false
	err := m.Generate(testContext(t), types.GenerationRequest{Prompt: "sort a dict", Language: "python"}, func(types.Chunk) error {
		called = true
		return nil
	})
	if !IsGeneration(err) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if called {
		t.Fatalf("emit must not be called on failure")
	}
	if n := len(b.model(0).generateCalls()); n != 2 {
		t.Fatalf("expected 2 generate calls, got %d", n)
	}
}

func TestGenerateValidation(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{})
	ctx := testContext(t)
	noop := func(types.Chunk) error { return nil }

	cases := []types.GenerationRequest{
		{Prompt: ""},
		{Prompt: "x", Temperature: 1.5},
		{Prompt: "x", RepetitionPenalty: 0.5},
		{Prompt: "x", MaxNewTokens: -1},
	}
	for i, req := range cases {
		if err := m.Generate(ctx, req, noop); !IsInvalidRequest(err) {
			t.Fatalf("case %d: expected invalid request, got %v", i, err)
		}
	}
	if err := m.Generate(ctx, types.GenerationRequest{Prompt: "x", Language: "cobol"}, noop); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateMemoryModeUnloadsAfterResult(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(t, b, func(c *Config) { c.PerformanceMode = ModeMemory })

	var chunks []types.Chunk
	if err := m.Generate(testContext(t), types.GenerationRequest{Prompt: "read a csv", Language: "python"}, collect(&chunks)); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("result should be emitted before unloading")
	}
	m.bg.Wait()
	if m.IsLoaded("python") {
		t.Fatalf("memory mode should unload after generation")
	}
}

func TestGenerateTooBusy(t *testing.T) {
	started := make(chan struct{}, 1)
	block := make(chan struct{})
	b := &fakeBackend{newModel: func(fm *fakeModel) {
		fm.started = started
		fm.block = block
	}}
	m, _ := newTestManager(t, b, func(c *Config) {
		c.MaxQueueDepth = 1
		c.MaxWait = 50 * time.Millisecond
	})
	ctx := testContext(t)
	noop := func(types.Chunk) error { return nil }

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Generate(ctx, types.GenerationRequest{Prompt: "first", Language: "python"}, noop)
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first generation did not start")
	}

	err := m.Generate(ctx, types.GenerationRequest{Prompt: "second", Language: "python"}, noop)
	if !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	close(block)
	if err := <-errCh; err != nil {
		t.Fatalf("first generation: %v", err)
	}
}

func TestSetPerformanceMode(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{})
	if got := m.SetPerformanceMode("memory"); got != ModeMemory {
		t.Fatalf("expected memory, got %s", got)
	}
	if got := m.SetPerformanceMode("turbo"); got != ModeBalanced {
		t.Fatalf("invalid mode should select balanced, got %s", got)
	}
	if m.Status().PerformanceMode != "balanced" {
		t.Fatalf("status should report balanced")
	}
}

func TestSwitchLoadsInBackground(t *testing.T) {
	m, pub := newTestManager(t, &fakeBackend{})

	op, err := m.Switch(testContext(t), "powershell")
	if err != nil || op == "" {
		t.Fatalf("switch: op=%q err=%v", op, err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !m.IsLoaded("powershell") {
		if time.Now().After(deadline) {
			t.Fatalf("switch did not load powershell")
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.bg.Wait()
	if pub.Count("switch_done") != 1 {
		t.Fatalf("expected switch_done event")
	}
	if _, err := m.Switch(testContext(t), "cobol"); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFormatCodeOnPool(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{})
	out, err := m.FormatCode(testContext(t), "Answer: print(1)", "python")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if out != "```python\nprint(1)\n```" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestShutdownUnloadsAll(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(t, b)
	if _, _, err := m.Load(testContext(t), "python", ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if m.Ready() {
		t.Fatalf("no model should remain after shutdown")
	}
}

func TestParsePerformanceMode(t *testing.T) {
	for in, want := range map[string]PerformanceMode{"Speed": ModeSpeed, " memory ": ModeMemory, "balanced": ModeBalanced} {
		got, ok := ParsePerformanceMode(in)
		if !ok || got != want {
			t.Fatalf("ParsePerformanceMode(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParsePerformanceMode(""); ok {
		t.Fatalf("empty mode should be invalid")
	}
}

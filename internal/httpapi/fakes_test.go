package httpapi

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"codebuddy/internal/manager"
	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

type mockModels struct {
	mu       sync.Mutex
	ready    bool
	status   types.StatusResponse
	final    string
	genErr   error
	ensureOK map[string]bool
	loaded   map[string]bool
	mode     string
	lastReq  types.GenerationRequest
}

func newMockModels() *mockModels {
	return &mockModels{
		final:    "```python\nprint('hi')\n```",
		ensureOK: map[string]bool{"python": true, "powershell": true},
		loaded:   map[string]bool{},
	}
}

func (m *mockModels) Configs() []types.ModelConfig {
	return []types.ModelConfig{{Language: "python", ModelID: "m"}, {Language: "powershell", ModelID: "m"}}
}
func (m *mockModels) Status() types.StatusResponse { return m.status }
func (m *mockModels) Ready() bool                  { return m.ready }
func (m *mockModels) DetectLanguage(p string) string {
	if p == "Get-Date" {
		return "powershell"
	}
	return "python"
}

func (m *mockModels) Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.genErr != nil {
		return m.genErr
	}
	lang := req.Language
	if lang == "" {
		lang = "python"
	}
	return emit(types.Chunk{Kind: types.ChunkFinal, Text: m.final, Language: lang})
}

func (m *mockModels) Ensure(ctx context.Context, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ensureOK[lang] {
		return manager.ErrUnsupportedLanguage(lang)
	}
	m.loaded[lang] = true
	return nil
}

func (m *mockModels) Unload(lang string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.loaded[lang]
	delete(m.loaded, lang)
	return ok
}

func (m *mockModels) Switch(ctx context.Context, lang string) (string, error) {
	if !m.ensureOK[lang] {
		return "", manager.ErrUnsupportedLanguage(lang)
	}
	return "op-1", nil
}

func (m *mockModels) SetPerformanceMode(mode string) manager.PerformanceMode {
	pm, _ := manager.ParsePerformanceMode(mode)
	m.mode = string(pm)
	return pm
}

// mockAssistant emits two status chunks before delegating to the models.
type mockAssistant struct {
	models *mockModels
	store  *training.Store

	mu  sync.Mutex
	err error
}

func (a *mockAssistant) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *mockAssistant) Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error {
	a.mu.Lock()
	err := a.err
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if err := emit(types.Chunk{Kind: types.ChunkStatus, Text: "Detecting language..."}); err != nil {
		return err
	}
	if err := emit(types.Chunk{Kind: types.ChunkStatus, Text: "Generating Python code..."}); err != nil {
		return err
	}
	return a.models.Generate(ctx, req, emit)
}

func (a *mockAssistant) Feedback(h []types.Turn, positive bool) (string, error) {
	return a.store.SaveFeedback(h, positive)
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

type fixture struct {
	models *mockModels
	asst   *mockAssistant
	store  *training.Store
	h      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := training.New(training.Config{Dir: filepath.Join(t.TempDir(), "training")})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	models := newMockModels()
	asst := &mockAssistant{models: models, store: store}
	f := &fixture{models: models, asst: asst, store: store}
	f.h = NewMux(Deps{
		Models:    models,
		Assistant: asst,
		Training:  store,
		Files:     func() []types.Model { return []types.Model{{ID: "codellama-13b-instruct", Quant: "Q4_K_M"}} },
	})
	return f
}

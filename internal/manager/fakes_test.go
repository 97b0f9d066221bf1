package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/internal/profiler"
	"codebuddy/internal/quant"
	"codebuddy/pkg/types"
)

const testModelID = "meta-llama/CodeLlama-13b-Instruct-hf"

func testConfigs() []types.ModelConfig {
	return []types.ModelConfig{
		{Language: "python", ModelID: testModelID, PromptTemplate: "Python: {prompt}", SupportsMultiTurn: true},
		{Language: "powershell", ModelID: testModelID, PromptTemplate: "PowerShell: {prompt}", SupportsMultiTurn: true},
	}
}

type fakeBackend struct {
	mu        sync.Mutex
	specs     []quant.Spec
	failRungs map[int]error
	tokErr    error
	noPad     bool
	models    []*fakeModel
	reclaims  atomic.Int64

	// newModel customizes each loaded model.
	newModel func(*fakeModel)
}

func (b *fakeBackend) LoadTokenizer(ctx context.Context, modelID string, opts backend.LoadOptions) (backend.Tokenizer, error) {
	if b.tokErr != nil {
		return nil, b.tokErr
	}
	t := &fakeTokenizer{special: backend.SpecialTokens{BOS: 1, EOS: 2, Pad: 0}}
	if b.noPad {
		t.special.Pad = -1
	}
	return t, nil
}

func (b *fakeBackend) LoadModel(ctx context.Context, modelID string, spec quant.Spec, opts backend.LoadOptions) (backend.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.specs = append(b.specs, spec)
	if err := b.failRungs[spec.Rung]; err != nil {
		return nil, err
	}
	m := &fakeModel{reply: []int{7, 8, 9}}
	if b.newModel != nil {
		b.newModel(m)
	}
	b.models = append(b.models, m)
	return m, nil
}

func (b *fakeBackend) ReclaimDevice() error {
	b.reclaims.Add(1)
	return nil
}

func (b *fakeBackend) loadCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.specs)
}

func (b *fakeBackend) model(i int) *fakeModel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.models[i]
}

type fakeModel struct {
	mu        sync.Mutex
	reply     []int
	calls     []backend.SamplingParams
	inputs    []backend.Encoding
	fail      func(backend.SamplingParams) error
	block     chan struct{}
	started   chan struct{}
	offloaded atomic.Bool
	closed    atomic.Bool
}

func (m *fakeModel) Generate(ctx context.Context, in backend.Encoding, p backend.SamplingParams) ([]int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, p)
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fail != nil {
		if err := m.fail(p); err != nil {
			return nil, err
		}
	}
	out := append([]int{}, in.IDs...)
	return append(out, m.reply...), nil
}

func (m *fakeModel) Offload() error { m.offloaded.Store(true); return nil }
func (m *fakeModel) Close() error   { m.closed.Store(true); return nil }

func (m *fakeModel) generateCalls() []backend.SamplingParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]backend.SamplingParams(nil), m.calls...)
}

// fakeTokenizer maps each word to one id and decodes new ids to a fixed
// python snippet wrapped in control tokens.
type fakeTokenizer struct {
	mu      sync.Mutex
	special backend.SpecialTokens
}

func (t *fakeTokenizer) Encode(ctx context.Context, text string, maxTokens int) (backend.Encoding, error) {
	words := strings.Fields(text)
	enc := backend.Encoding{IDs: make([]int, len(words)), AttentionMask: make([]int, len(words))}
	for i := range words {
		enc.IDs[i] = 100 + i
		enc.AttentionMask[i] = 1
	}
	return enc, nil
}

func (t *fakeTokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	return "<s>[INST]\ndef add(a, b):\n    return a + b</s>", nil
}

func (t *fakeTokenizer) Special() backend.SpecialTokens {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.special
}

func (t *fakeTokenizer) SetPad(id int) {
	t.mu.Lock()
	t.special.Pad = id
	t.mu.Unlock()
}

func newTestManager(t *testing.T, b *fakeBackend, mutate ...func(*Config)) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg := Config{
		Models:       testConfigs(),
		Backend:      b,
		Capabilities: profiler.Capabilities{PhysicalCores: 8, LogicalCores: 16, TokenizationThreads: 4},
		MaxWait:      time.Second,
		DrainTimeout: time.Second,
		Publisher:    pub,
	}
	for _, f := range mutate {
		f(&cfg)
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, pub
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

var errOOM = errors.Join(errors.New("cudaMalloc failed"), backend.ErrOutOfMemory)

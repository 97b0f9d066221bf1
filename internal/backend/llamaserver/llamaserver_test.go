package llamaserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/internal/profiler"
	"codebuddy/internal/quant"
	"codebuddy/internal/registry"
	"codebuddy/pkg/types"
)

func TestEstimateLayers(t *testing.T) {
	if got := estimateLayers(0, 10, 40); got != 0 {
		t.Fatalf("no gpu: got %d", got)
	}
	if got := estimateLayers(24<<30, 8<<30, 40); got != allLayers {
		t.Fatalf("fits: got %d", got)
	}
	if got := estimateLayers(10<<30, 18<<30, 40); got != 20 {
		t.Fatalf("partial: got %d", got)
	}
	if got := estimateLayers(10<<30, 0, 40); got != 20 {
		t.Fatalf("unknown size: got %d", got)
	}
}

func TestPlacementArgs(t *testing.T) {
	gpu := profiler.Capabilities{GPUPresent: true, GPUTotalMemoryBytes: 24 << 30}
	single := placementArgs(quant.Spec{Placement: quant.PlacementSingle, Device: 1}, gpu, 0, 40)
	if strings.Join(single, " ") != "-ngl 999 --split-mode none --main-gpu 1" {
		t.Fatalf("single: %v", single)
	}
	auto := placementArgs(quant.Spec{Placement: quant.PlacementAuto}, gpu, 48<<30, 40)
	if strings.Join(auto, " ") != "-ngl 18" {
		t.Fatalf("auto: %v", auto)
	}
	cpu := placementArgs(quant.Spec{Placement: quant.PlacementSingle}, profiler.Capabilities{}, 0, 40)
	if strings.Join(cpu, " ") != "-ngl 0" {
		t.Fatalf("cpu: %v", cpu)
	}
}

func TestSourceArgs(t *testing.T) {
	idx := registry.NewIndex([]types.Model{
		{ID: "codellama-13b-instruct", Quant: "Q4_K_M", Path: "/m/q4.gguf", SizeBytes: 7},
		{ID: "codellama-13b-instruct", Quant: "Q8_0", Path: "/m/q8.gguf", SizeBytes: 13},
	})
	b := New(Config{Bin: "/bin/true", Models: idx, HFRepos: map[string]string{
		"meta-llama/CodeLlama-13b-Instruct-hf": "TheBloke/CodeLlama-13B-Instruct-GGUF",
	}})
	const id = "meta-llama/CodeLlama-13b-Instruct-hf"

	args, size, err := b.sourceArgs(id, quant.Spec{Precision: quant.PrecisionNF4})
	if err != nil || strings.Join(args, " ") != "-m /m/q4.gguf" || size != 7 {
		t.Fatalf("nf4: %v %d %v", args, size, err)
	}
	args, _, err = b.sourceArgs(id, quant.Spec{Precision: quant.PrecisionInt8})
	if err != nil || args[1] != "/m/q8.gguf" {
		t.Fatalf("int8: %v %v", args, err)
	}
	args, size, err = b.sourceArgs(id, quant.Spec{Precision: quant.PrecisionFP16})
	if err != nil || strings.Join(args, " ") != "-hf TheBloke/CodeLlama-13B-Instruct-GGUF:F16" || size != 0 {
		t.Fatalf("fp16 fallback: %v %v", args, err)
	}
	if _, _, err := b.sourceArgs("local-only", quant.Spec{Precision: quant.PrecisionFP16}); err == nil {
		t.Fatalf("expected error for unknown local model")
	}
}

func TestLoadModelWithoutBinary(t *testing.T) {
	b := &Backend{cfg: Config{}, sessions: map[string]*session{}, procs: map[*process]struct{}{}}
	b.cfg.applyDefaults()
	_, err := b.LoadModel(context.Background(), "x", quant.Spec{}, backend.LoadOptions{})
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(5)
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defgh"))
	if got := tb.String(); got != "defgh" {
		t.Fatalf("got %q", got)
	}
}

func TestClassifyExit(t *testing.T) {
	err := classifyExit(errors.New("exit 1"), "CUDA error: cudaMalloc failed: out of memory")
	if !backend.IsOutOfMemory(err) {
		t.Fatalf("expected OOM, got %v", err)
	}
	if backend.IsOutOfMemory(classifyExit(errors.New("exit 1"), "bad magic")) {
		t.Fatalf("unexpected OOM classification")
	}
}

func TestSessionWaitsForAttach(t *testing.T) {
	s := newSession(http.DefaultClient)
	done := make(chan string, 1)
	go func() {
		u, _ := s.url(context.Background())
		done <- u
	}()
	time.Sleep(10 * time.Millisecond)
	s.attach("http://x")
	select {
	case u := <-done:
		if u != "http://x" {
			t.Fatalf("got %q", u)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter not released")
	}
	s.detach()
	if _, err := s.url(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	s.attach("http://y")
	if u, err := s.url(context.Background()); err != nil || u != "http://y" {
		t.Fatalf("reattach: %q %v", u, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newSession(http.DefaultClient).url(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// fakeServer serves the endpoints Tokenizer and Model use.
func TestTokenizerSingleBOS(t *testing.T) {
	srv, _ := fakeServer(t, completionResponse{})
	s := newSession(srv.Client())
	s.attach(srv.URL)
	tok := &Tokenizer{s: s, special: defaultSpecial()}

	for _, text := range []string{"<s>[INST] hi [/INST]", "plain prompt"} {
		enc, err := tok.Encode(context.Background(), text, 0)
		if err != nil {
			t.Fatalf("Encode(%q): %v", text, err)
		}
		bos := 0
		for _, id := range enc.IDs {
			if id == llamaBOS {
				bos++
			}
		}
		if bos != 1 || enc.IDs[0] != llamaBOS {
			t.Fatalf("Encode(%q) = %v, want exactly one leading BOS", text, enc.IDs)
		}
	}
}

func fakeServer(t *testing.T, completion completionResponse) (*httptest.Server, *completionRequest) {
	t.Helper()
	var last completionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		toks := []int{}
		if req.AddSpecial {
			toks = append(toks, llamaBOS)
		}
		content := req.Content
		if rest, ok := strings.CutPrefix(content, bosLiteral); ok && req.ParseSpecial {
			toks = append(toks, llamaBOS)
			content = rest
		}
		for range strings.Fields(content) {
			toks = append(toks, 10+len(toks))
		}
		_ = json.NewEncoder(w).Encode(tokenizeResponse{Tokens: toks})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req detokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts := make([]string, len(req.Tokens))
		for i, id := range req.Tokens {
			parts[i] = "t" + string(rune('0'+id%10))
		}
		_ = json.NewEncoder(w).Encode(detokenizeResponse{Content: strings.Join(parts, " ")})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&last)
		_ = json.NewEncoder(w).Encode(completion)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestTokenizerEncodeDecode(t *testing.T) {
	srv, _ := fakeServer(t, completionResponse{})
	s := newSession(srv.Client())
	s.attach(srv.URL)
	tok := &Tokenizer{s: s, special: defaultSpecial()}

	enc, err := tok.Encode(context.Background(), "a b c d", 3)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// BOS + 4 words, left-truncated to the last 3
	if enc.Len() != 3 || enc.IDs[0] != 12 || len(enc.AttentionMask) != 3 {
		t.Fatalf("unexpected encoding %+v", enc)
	}
	text, err := tok.Decode(context.Background(), []int{llamaBOS, 13, llamaEOS}, true)
	if err != nil || text != "t3" {
		t.Fatalf("Decode: %q %v", text, err)
	}
	if text, _ := tok.Decode(context.Background(), []int{llamaEOS}, true); text != "" {
		t.Fatalf("all-special decode: %q", text)
	}
	if tok.Special().Pad != -1 {
		t.Fatalf("pad should be unset by default")
	}
	tok.SetPad(llamaEOS)
	if tok.Special().Pad != llamaEOS {
		t.Fatalf("SetPad not applied")
	}
}

func TestModelGenerate(t *testing.T) {
	srv, last := fakeServer(t, completionResponse{Content: "x y", Tokens: []int{7, 8}, Stop: true})
	s := newSession(srv.Client())
	s.attach(srv.URL)
	m := &Model{s: s}
	seq, err := m.Generate(context.Background(), backend.Encoding{IDs: []int{1, 2}}, backend.SamplingParams{
		DoSample: true, Temperature: 0.2, TopK: 50, TopP: 0.95, RepetitionPenalty: 1.1, MaxNewTokens: 16, UseCache: true, NumBeams: 2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(seq) != 4 || seq[0] != 1 || seq[3] != 8 {
		t.Fatalf("unexpected sequence %v", seq)
	}
	if last.NPredict != 16 || last.TopK != 50 || !last.ReturnTokens || !last.CachePrompt || last.Temperature != 0.2 {
		t.Fatalf("unexpected request %+v", *last)
	}

	if _, err := m.Generate(context.Background(), backend.Encoding{IDs: []int{1}}, backend.SamplingParams{}); err != nil {
		t.Fatalf("greedy: %v", err)
	}
	if last.Temperature != 0 {
		t.Fatalf("greedy decoding must send temperature 0, got %v", last.Temperature)
	}
}

func TestModelGenerateWithoutTokens(t *testing.T) {
	srv, _ := fakeServer(t, completionResponse{Content: "one two"})
	s := newSession(srv.Client())
	s.attach(srv.URL)
	m := &Model{s: s}
	seq, err := m.Generate(context.Background(), backend.Encoding{IDs: []int{1}}, backend.SamplingParams{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("expected content to be re-tokenized, got %v", seq)
	}
}

func TestServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "failed to allocate KV cache", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := newSession(srv.Client())
	s.attach(srv.URL)
	m := &Model{s: s}
	_, err := m.Generate(context.Background(), backend.Encoding{IDs: []int{1}}, backend.SamplingParams{})
	if !backend.IsOutOfMemory(err) {
		t.Fatalf("expected OOM classification, got %v", err)
	}
}

package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codebuddy/internal/assistant"
	"codebuddy/internal/backend/llamaserver"
	"codebuddy/internal/config"
	"codebuddy/internal/httpapi"
	"codebuddy/internal/manager"
	"codebuddy/internal/profiler"
	"codebuddy/internal/registry"
	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

var (
	fakeOnce sync.Once
	fakeBin  string
	fakeErr  error
	fakeOut  []byte
)

// fakeServerBin compiles the fake llama-server once per test binary.
func fakeServerBin(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	fakeOnce.Do(func() {
		dir, err := os.MkdirTemp("", "codebuddy-e2e-")
		if err != nil {
			fakeErr = err
			return
		}
		fakeBin = filepath.Join(dir, "fake_llama_server")
		cmd := exec.Command("go", "build", "-o", fakeBin, "../backend/llamaserver/testdata/fake_llama_server.go")
		cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
		fakeOut, fakeErr = cmd.CombinedOutput()
	})
	if fakeErr != nil {
		t.Fatalf("build fake server: %v: %s", fakeErr, string(fakeOut))
	}
	return fakeBin
}

// createTempModelsDir creates a temporary directory populated with placeholder
// .gguf files.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

type env struct {
	srv   *httptest.Server
	mgr   *manager.Manager
	be    *llamaserver.Backend
	store *training.Store
}

// newEnv wires the whole service in process over the fake llama-server.
func newEnv(t *testing.T, mutate func(*manager.Config)) *env {
	t.Helper()
	bin := fakeServerBin(t)
	files, err := registry.LoadDir(createTempModelsDir(t, "codellama-13b-instruct.Q4_K_M.gguf", "codellama-13b-instruct.Q8_0.gguf"))
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	index := registry.NewIndex(files)
	be := llamaserver.New(llamaserver.Config{
		Bin:            bin,
		Models:         index,
		CtxSize:        2048,
		StartupTimeout: 10 * time.Second,
		StopTimeout:    2 * time.Second,
	})
	mcfg := manager.Config{
		Models:       config.DefaultModels(),
		Backend:      be,
		Capabilities: profiler.Capabilities{InferenceThreads: 2, TokenizationThreads: 2},
		MaxWait:      5 * time.Second,
		DrainTimeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&mcfg)
	}
	mgr, err := manager.New(mcfg)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	store, err := training.New(training.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	mux := httpapi.NewMux(httpapi.Deps{
		Models:    mgr,
		Assistant: assistant.New(mgr, store, mcfg.Logger),
		Training:  store,
		Files:     func() []types.Model { return index.All() },
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		be.StopAll()
	})
	return &env{srv: srv, mgr: mgr, be: be, store: store}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

package e2e

import (
	"net/http"
	"strings"
	"testing"
)

// Every rung spawns a server that dies with a CUDA allocation failure, so the
// whole ladder is exhausted and the error names each attempt.
func TestE2E_LadderExhaustedOnOutOfMemory(t *testing.T) {
	t.Setenv("FAKE_LLAMA_MODE", "oom")
	e := newEnv(t, nil)

	resp, body := httpPostJSON(t, e.srv.URL+"/generate", `{"prompt":"x","language":"python"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %s", resp.StatusCode, body)
	}
	msg := string(body)
	for _, want := range []string{"all quantization strategies failed", "rung 1", "rung 2", "rung 3"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
	if e.be.Running() != 0 || e.mgr.IsLoaded("python") {
		t.Fatalf("failed load left state behind")
	}
	if st := e.mgr.Status(); !strings.Contains(st.LastError, "all quantization strategies failed") {
		t.Fatalf("unexpected last error %q", st.LastError)
	}
}

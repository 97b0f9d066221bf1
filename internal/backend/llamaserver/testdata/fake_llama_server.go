package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// vocab assigns ids to whitespace-separated words on first sight.
type vocab struct {
	mu    sync.Mutex
	ids   map[string]int
	words map[int]string
}

func (v *vocab) encode(text string) []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []int
	for _, w := range strings.Fields(text) {
		id, ok := v.ids[w]
		if !ok {
			id = 100 + len(v.ids)
			v.ids[w] = id
			v.words[id] = w
		}
		out = append(out, id)
	}
	return out
}

func (v *vocab) decode(ids []int) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var words []string
	for _, id := range ids {
		if w, ok := v.words[id]; ok {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func main() {
	host, port := "127.0.0.1", "0"
	args := os.Args[1:]
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "--host":
			host = args[i+1]
		case "--port":
			port = args[i+1]
		}
	}
	if f := os.Getenv("FAKE_LLAMA_ARGS_FILE"); f != "" {
		_ = os.WriteFile(f, []byte(strings.Join(args, "\n")), 0o644)
	}
	if os.Getenv("FAKE_LLAMA_MODE") == "oom" {
		fmt.Fprintln(os.Stderr, "ggml_backend_cuda_buffer_type_alloc_buffer: allocating 7000 MiB on device 0: cudaMalloc failed: out of memory")
		os.Exit(1)
	}
	reply := os.Getenv("FAKE_LLAMA_REPLY")
	if reply == "" {
		reply = "print('hi')"
	}

	v := &vocab{ids: map[string]int{}, words: map[int]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content      string `json:"content"`
			AddSpecial   bool   `json:"add_special"`
			ParseSpecial bool   `json:"parse_special"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var toks []int
		if rest, ok := strings.CutPrefix(req.Content, "<s>"); ok && req.ParseSpecial {
			toks = append([]int{1}, v.encode(rest)...)
		} else {
			toks = v.encode(req.Content)
		}
		if req.AddSpecial {
			toks = append([]int{1}, toks...)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tokens": toks})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tokens []int `json:"tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": v.decode(req.Tokens)})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		toks := v.encode(reply)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": reply, "tokens": toks, "stop": true})
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

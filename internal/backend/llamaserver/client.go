package llamaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrNotLoaded is returned by tokenizer calls after the model was unloaded.
var ErrNotLoaded = errors.New("llama-server: model not loaded")

// session tracks the server currently serving one model id.
type session struct {
	cli *http.Client

	mu      sync.Mutex
	baseURL string
	ready   chan struct{}
	closed  bool
}

func newSession(cli *http.Client) *session {
	return &session{cli: cli, ready: make(chan struct{})}
}

func (s *session) attach(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseURL != "" && !s.closed {
		// ready was closed by the previous attach
		s.ready = make(chan struct{})
	}
	s.baseURL = baseURL
	s.closed = false
	close(s.ready)
}

func (s *session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.baseURL == "" {
		return
	}
	s.baseURL = ""
	s.closed = true
	s.ready = make(chan struct{})
}

// url blocks until a server is attached or ctx is done.
func (s *session) url(ctx context.Context) (string, error) {
	for {
		s.mu.Lock()
		base, ready, closed := s.baseURL, s.ready, s.closed
		s.mu.Unlock()
		if base != "" {
			return base, nil
		}
		if closed {
			return "", ErrNotLoaded
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// post sends a JSON request and decodes a JSON response.
func (s *session) post(ctx context.Context, path string, in, out any) error {
	base, err := s.url(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.cli.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyExit(fmt.Errorf("llama-server %s: %s: %s", path, resp.Status, string(b)), string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package llamaserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"codebuddy/internal/backend"
)

// process is one running llama-server.
type process struct {
	cmd     *exec.Cmd
	baseURL string
	pid     int
	stderr  *tailBuffer
	// exited is closed when the process has been reaped.
	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
}

// waitReady polls /health until the server answers, the process exits or
// ctx is done.
func (p *process) waitReady(ctx context.Context, cli *http.Client) error {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-p.exited:
			tail := p.stderr.String()
			if p.waitErr != nil {
				return classifyExit(fmt.Errorf("llama-server exited early: %v; stderr tail: %s", p.waitErr, tail), tail)
			}
			return classifyExit(fmt.Errorf("llama-server exited before ready: %s; stderr tail: %s", p.baseURL, tail), tail)
		case <-ctx.Done():
			return fmt.Errorf("llama-server not ready: %s: %w", p.baseURL, ctx.Err())
		case <-tick.C:
		}
		if healthy(ctx, cli, p.baseURL) {
			return nil
		}
	}
}

// terminate sends SIGTERM once.
func (p *process) terminate() {
	p.stopOnce.Do(func() {
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
		}
	})
}

// stop terminates the process and waits up to grace before killing it.
func (p *process) stop(grace time.Duration) {
	p.terminate()
	select {
	case <-p.exited:
	case <-time.After(grace):
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.exited
	}
}

func (p *process) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func healthy(ctx context.Context, cli *http.Client, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := cli.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// oomMarkers appear in llama.cpp stderr when an allocation fails.
var oomMarkers = []string{
	"out of memory",
	"failed to allocate",
	"cudamalloc failed",
	"unable to allocate",
	"not enough memory",
}

func classifyExit(err error, stderr string) error {
	s := strings.ToLower(stderr)
	for _, m := range oomMarkers {
		if strings.Contains(s, m) {
			return fmt.Errorf("%w: %v", backend.ErrOutOfMemory, err)
		}
	}
	return err
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer { return &tailBuffer{limit: limit} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

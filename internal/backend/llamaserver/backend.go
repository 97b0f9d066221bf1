package llamaserver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"codebuddy/internal/backend"
	"codebuddy/internal/profiler"
	"codebuddy/internal/quant"
)

// ErrBinaryNotFound is returned when no llama-server binary is available.
var ErrBinaryNotFound = fmt.Errorf("llama-server binary not found: %w", backend.ErrUnavailable)

// Backend spawns llama-server processes. Tokenizers returned by LoadTokenizer
// become usable once LoadModel for the same model id has succeeded.
type Backend struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
	procs    map[*process]struct{}
}

var (
	_ backend.Backend         = (*Backend)(nil)
	_ backend.DeviceReclaimer = (*Backend)(nil)
)

// New returns a backend; the binary is discovered when cfg.Bin is empty.
func New(cfg Config) *Backend {
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.Bin) == "" {
		cfg.Bin = DiscoverBin()
	}
	return &Backend{
		cfg:      cfg,
		sessions: make(map[string]*session),
		procs:    make(map[*process]struct{}),
	}
}

// Bin returns the resolved binary path, empty when none was found.
func (b *Backend) Bin() string { return b.cfg.Bin }

func (b *Backend) sessionFor(modelID string) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[modelID]
	if s == nil {
		s = newSession(b.cfg.HTTPClient)
		b.sessions[modelID] = s
	}
	return s
}

// LoadTokenizer returns the tokenizer of modelID. It does not spawn anything:
// llama.cpp tokenizes with the model server itself.
func (b *Backend) LoadTokenizer(ctx context.Context, modelID string, _ backend.LoadOptions) (backend.Tokenizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tokenizer{s: b.sessionFor(modelID), special: defaultSpecial()}, nil
}

// LoadModel spawns llama-server with the variant and placement chosen by spec.
func (b *Backend) LoadModel(ctx context.Context, modelID string, spec quant.Spec, opts backend.LoadOptions) (backend.Model, error) {
	if b.cfg.Bin == "" {
		return nil, ErrBinaryNotFound
	}
	args, sizeBytes, err := b.sourceArgs(modelID, spec)
	if err != nil {
		return nil, err
	}
	args = append(args, placementArgs(spec, opts.Capabilities, sizeBytes, b.cfg.AssumedLayers)...)
	caps := opts.Capabilities
	if caps.InferenceThreads > 0 {
		args = append(args, "-t", strconv.Itoa(caps.InferenceThreads))
	}
	if caps.TokenizationThreads > 0 {
		args = append(args, "--threads-batch", strconv.Itoa(caps.TokenizationThreads))
	}
	if b.cfg.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(b.cfg.CtxSize))
	}
	args = append(args, b.cfg.ExtraArgs...)

	p, err := b.spawn(ctx, modelID, args, spec, opts)
	if err != nil {
		return nil, err
	}
	s := b.sessionFor(modelID)
	s.attach(p.baseURL)
	return &Model{b: b, p: p, s: s, modelID: modelID}, nil
}

// sourceArgs picks a local GGUF file for spec or falls back to a hub repo.
func (b *Backend) sourceArgs(modelID string, spec quant.Spec) ([]string, int64, error) {
	prefs := quantPrefs[spec.Precision]
	if m, ok := b.cfg.Models.Pick(modelID, prefs); ok {
		return []string{"-m", m.Path}, m.SizeBytes, nil
	}
	if len(prefs) == 0 {
		return nil, 0, fmt.Errorf("no gguf variant for precision %s", spec.Precision)
	}
	repo := modelID
	if r, ok := b.cfg.HFRepos[modelID]; ok && r != "" {
		repo = r
	}
	if !strings.Contains(repo, "/") {
		return nil, 0, fmt.Errorf("model %q: no local %s file and not a hub repository", modelID, spec.Precision)
	}
	return []string{"-hf", repo + ":" + prefs[0]}, 0, nil
}

// placementArgs maps a placement to GPU layer flags.
func placementArgs(spec quant.Spec, caps profiler.Capabilities, sizeBytes int64, assumedLayers int) []string {
	if !caps.GPUPresent {
		return []string{"-ngl", "0"}
	}
	if spec.Placement == quant.PlacementSingle {
		return []string{"-ngl", strconv.Itoa(allLayers), "--split-mode", "none", "--main-gpu", strconv.Itoa(spec.Device)}
	}
	return []string{"-ngl", strconv.Itoa(estimateLayers(caps.GPUTotalMemoryBytes, sizeBytes, assumedLayers))}
}

// estimateLayers returns how many of layers fit in 90% of gpuBytes.
func estimateLayers(gpuBytes, modelBytes int64, layers int) int {
	if gpuBytes <= 0 {
		return 0
	}
	if modelBytes <= 0 {
		return layers / 2
	}
	usable := gpuBytes / 10 * 9
	if usable >= modelBytes {
		return allLayers
	}
	return int(int64(layers) * usable / modelBytes)
}

func (b *Backend) spawn(ctx context.Context, modelID string, args []string, spec quant.Spec, opts backend.LoadOptions) (*process, error) {
	host := b.cfg.Host
	var port int
	var err error
	if b.cfg.PortStart > 0 && b.cfg.PortEnd >= b.cfg.PortStart {
		port, err = pickPortInRange(host, b.cfg.PortStart, b.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	args = append(args, "--host", host, "--port", strconv.Itoa(port))

	cmd := exec.Command(b.cfg.Bin, args...)
	cmd.Env = os.Environ()
	if opts.AuthToken != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+opts.AuthToken)
	}
	if opts.CacheDir != "" {
		cmd.Env = append(cmd.Env, "LLAMA_CACHE="+opts.CacheDir)
	}
	if spec.OffloadDir != "" {
		cmd.Env = append(cmd.Env, "TMPDIR="+spec.OffloadDir)
	}
	stderr := newTailBuffer(8192)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &process{
		cmd:     cmd,
		baseURL: "http://" + host + ":" + strconv.Itoa(port),
		pid:     cmd.Process.Pid,
		stderr:  stderr,
		exited:  make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	b.track(p)

	log := b.cfg.Logger.With().Str("model", modelID).Int("pid", p.pid).Str("spec", spec.String()).Logger()
	log.Info().Int("port", port).Msg("llamaserver event=spawn_start")

	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.StartupTimeout)
	defer cancel()
	if err := p.waitReady(waitCtx, b.cfg.HTTPClient); err != nil {
		log.Warn().Err(err).Msg("llamaserver event=spawn_failed")
		b.stopProcess(p)
		return nil, err
	}
	log.Info().Str("url", p.baseURL).Msg("llamaserver event=spawn_ready")
	return p, nil
}

func (b *Backend) track(p *process) {
	b.mu.Lock()
	b.procs[p] = struct{}{}
	b.mu.Unlock()
}

func (b *Backend) stopProcess(p *process) {
	p.stop(b.cfg.StopTimeout)
	b.mu.Lock()
	delete(b.procs, p)
	b.mu.Unlock()
}

// ReclaimDevice reaps processes that exited on their own. GPU memory held by
// llama-server is released when its process is gone.
func (b *Backend) ReclaimDevice() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.procs {
		if !p.alive() {
			delete(b.procs, p)
		}
	}
	return nil
}

// StopAll terminates every managed process.
func (b *Backend) StopAll() {
	b.mu.Lock()
	procs := make([]*process, 0, len(b.procs))
	for p := range b.procs {
		procs = append(procs, p)
	}
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.detach()
	}
	for _, p := range procs {
		b.stopProcess(p)
	}
}

// Running returns the number of managed processes.
func (b *Backend) Running() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.procs)
}

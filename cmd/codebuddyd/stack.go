package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"codebuddy/internal/backend/llamaserver"
	"codebuddy/internal/manager"
	"codebuddy/internal/profiler"
	"codebuddy/internal/registry"
	"codebuddy/pkg/types"
)

// stack is the wired inference side of the service.
type stack struct {
	caps    profiler.Capabilities
	index   *registry.Index
	backend *llamaserver.Backend
	mgr     *manager.Manager
}

// buildStack profiles the host, indexes local GGUF files and builds the
// manager over a llama-server backend. reg may be nil.
func (a *app) buildStack(ctx context.Context, reg prometheus.Registerer) (*stack, error) {
	cfg := a.cfg
	caps := profiler.Profile(ctx, profiler.Options{Logger: a.log.With().Str("component", "profiler").Logger()})
	profiler.LogSummary(a.log, caps)

	var files []types.Model
	if cfg.ModelsDir != "" {
		var err error
		files, err = registry.LoadDir(cfg.ModelsDir)
		switch {
		case errors.Is(err, os.ErrNotExist):
			a.log.Warn().Str("dir", cfg.ModelsDir).Msg("startup event=models_dir_missing using=hf_repos")
		case err != nil:
			return nil, err
		default:
			a.log.Info().Str("dir", cfg.ModelsDir).Int("files", len(files)).Msg("startup event=models_indexed")
		}
	}
	index := registry.NewIndex(files)

	ls := cfg.LlamaServer
	be := llamaserver.New(llamaserver.Config{
		Bin:            ls.Bin,
		Host:           ls.Host,
		PortStart:      ls.PortStart,
		PortEnd:        ls.PortEnd,
		CtxSize:        ls.CtxSize,
		StartupTimeout: ls.StartupTimeout.Std(),
		ExtraArgs:      ls.ExtraArgs,
		HFRepos:        ls.HFRepos,
		Models:         index,
		Logger:         a.log.With().Str("component", "llamaserver").Logger(),
	})
	if be.Bin() == "" {
		a.log.Warn().Msg("startup event=llama_server_missing loads=unavailable")
	}

	mode, ok := manager.ParsePerformanceMode(cfg.PerformanceMode)
	if !ok {
		a.log.Warn().Str("mode", cfg.PerformanceMode).Msg("startup event=invalid_performance_mode using=balanced")
	}
	mlog := a.log.With().Str("component", "manager").Logger()
	mgr, err := manager.New(manager.Config{
		Models:          cfg.Models,
		Backend:         be,
		Capabilities:    caps,
		OffloadDir:      cfg.OffloadDir,
		CacheDir:        cfg.CacheDir,
		AuthToken:       cfg.AuthToken,
		PerformanceMode: mode,
		MaxInputTokens:  cfg.MaxInputTokens,
		MaxQueueDepth:   cfg.MaxQueueDepth,
		MaxWait:         cfg.MaxWait.Std(),
		DrainTimeout:    cfg.DrainTimeout.Std(),
		Publisher:       manager.LogPublisher{Logger: mlog},
		Logger:          mlog,
		Registerer:      reg,
	})
	if err != nil {
		be.StopAll()
		return nil, err
	}
	return &stack{caps: caps, index: index, backend: be, mgr: mgr}, nil
}

// close unloads every model and stops leftover llama-server processes.
func (s *stack) close(ctx context.Context) error {
	err := s.mgr.Shutdown(ctx)
	s.backend.StopAll()
	return err
}

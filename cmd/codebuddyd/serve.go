package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"codebuddy/internal/assistant"
	"codebuddy/internal/httpapi"
	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	addr        string
	modelsDir   string
	trainingDir string
	mode        string
	corsOrigins string
}

func newServeCmd(a *app) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: "  codebuddyd serve --addr :5000 --models-dir ~/models/llm\n" +
			"  codebuddyd serve --config codebuddy.yaml --performance-mode memory",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, a)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :5000 (defaults CODEBUDDY_ADDR)")
	cmd.Flags().StringVar(&f.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	cmd.Flags().StringVar(&f.trainingDir, "training-dir", "", "Directory for training examples")
	cmd.Flags().StringVar(&f.mode, "performance-mode", "", "balanced|speed|memory")
	cmd.Flags().StringVar(&f.corsOrigins, "cors-origins", "", "Comma separated allowed origins; enables CORS")
	return cmd
}

func (f serveFlags) apply(cmd *cobra.Command, a *app) {
	fl := cmd.Flags()
	if fl.Changed("addr") {
		a.cfg.Addr = f.addr
	}
	if fl.Changed("models-dir") {
		a.cfg.ModelsDir = f.modelsDir
	}
	if fl.Changed("training-dir") {
		a.cfg.TrainingDir = f.trainingDir
	}
	if fl.Changed("performance-mode") {
		a.cfg.PerformanceMode = f.mode
	}
	if fl.Changed("cors-origins") {
		a.cfg.CORSEnabled = true
		a.cfg.CORSAllowedOrigins = splitCSV(f.corsOrigins)
	}
}

// serve runs until ctx ends, then drains HTTP, unloads models and stops
// llama-server processes.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	st, err := a.buildStack(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	store, err := training.New(training.Config{
		Dir:    cfg.TrainingDir,
		Detect: st.mgr.DetectLanguage,
		Logger: a.log.With().Str("component", "training").Logger(),
	})
	if err != nil {
		_ = st.close(context.Background())
		return err
	}
	asst := assistant.New(st.mgr, store, a.log.With().Str("component", "assistant").Logger())

	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeout(cfg.GenerateTimeout.Std())
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)

	mux := httpapi.NewMux(httpapi.Deps{
		Models:    st.mgr,
		Assistant: asst,
		Training:  store,
		Files:     func() []types.Model { return st.index.All() },
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.Addr).Str("training_dir", store.Dir()).Msg("codebuddyd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil {
		a.log.Warn().Err(serr).Msg("graceful shutdown error")
	}
	if cerr := st.close(sctx); cerr != nil {
		a.log.Warn().Err(cerr).Msg("model shutdown error")
	}
	a.log.Info().Msg("codebuddyd stopped")
	return err
}

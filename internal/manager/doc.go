// Package manager owns the lifecycle of language-specific code models: lazy
// loading through the quantization ladder, single-resident eviction, admission
// control and generation with a one-shot safe fallback. Files by concern:
//
//   - manager.go: Manager type and constructor.
//   - config.go: Config and package defaults.
//   - types.go: State, PerformanceMode, Instance.
//   - errors.go: error types and Is* helpers for the HTTP layer.
//   - load.go: Load, eviction and the quantization ladder.
//   - unload.go: drain, release and memory reclaim.
//   - admission.go: per-instance queueing of generations.
//   - generate.go: prompt formatting, tokenization, primary and fallback runs.
//   - ops.go: Switch, performance mode, auth token, shutdown.
//   - status.go: Status and readiness.
//   - metrics.go: Prometheus collectors.
//
// At most one language is resident at a time. Load and unload transitions are
// serialized; generations on the resident model run one at a time with a
// bounded queue in front.
package manager

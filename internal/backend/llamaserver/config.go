// Package llamaserver implements the inference backend on top of llama.cpp's
// llama-server, spawning one process per loaded model.
package llamaserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"codebuddy/internal/quant"
	"codebuddy/internal/registry"
)

// Config controls process spawning.
type Config struct {
	// Bin is the llama-server binary; discovered when empty.
	Bin  string
	Host string
	// PortStart and PortEnd bound the listen port; any free port when unset.
	PortStart int
	PortEnd   int
	CtxSize   int
	// StartupTimeout bounds the wait for /health after spawn.
	StartupTimeout time.Duration
	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration
	// AssumedLayers estimates the layer count when sizing partial offload.
	AssumedLayers int
	ExtraArgs     []string
	// HFRepos maps model identifiers to GGUF repositories used with -hf
	// when no local file matches.
	HFRepos map[string]string
	// Models is the local GGUF index; may be nil.
	Models     *registry.Index
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

const (
	defaultHost           = "127.0.0.1"
	defaultStartupTimeout = 120 * time.Second
	defaultStopTimeout    = 5 * time.Second
	defaultAssumedLayers  = 40
	// allLayers asks llama.cpp to put every layer on the GPU.
	allLayers = 999
)

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.AssumedLayers <= 0 {
		c.AssumedLayers = defaultAssumedLayers
	}
	if c.HTTPClient == nil {
		// No client timeout: every request carries a context deadline.
		c.HTTPClient = &http.Client{Timeout: 0}
	}
}

// quantPrefs lists GGUF variants acceptable for each precision, best first.
var quantPrefs = map[quant.Precision][]string{
	quant.PrecisionNF4:  {"Q4_K_M", "Q4_K_S", "Q4_0", "IQ4_XS"},
	quant.PrecisionFP16: {"F16", "BF16"},
	quant.PrecisionInt8: {"Q8_0"},
}

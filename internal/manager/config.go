package manager

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"codebuddy/internal/backend"
	"codebuddy/internal/profiler"
	"codebuddy/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth  = 32
	defaultMaxWait        = 30 * time.Second
	defaultDrainTimeout   = 30 * time.Second
	defaultMaxInputTokens = 1024

	defaultTemperature       = 0.2
	defaultMaxNewTokens      = 1024
	defaultRepetitionPenalty = 1.1
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Models lists one config per language; the first is the default.
	Models       []types.ModelConfig
	Backend      backend.Backend
	Capabilities profiler.Capabilities

	OffloadDir string
	CacheDir   string
	AuthToken  string

	PerformanceMode PerformanceMode
	// MaxInputTokens caps the tokenized prompt; older tokens are dropped.
	MaxInputTokens int
	MaxQueueDepth  int
	MaxWait        time.Duration
	DrainTimeout   time.Duration

	Publisher EventPublisher
	Logger    zerolog.Logger
	// Registerer receives the manager collectors. Nil skips registration.
	Registerer prometheus.Registerer
	Validator  *validator.Validate
}

func (c *Config) applyDefaults() {
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.MaxInputTokens <= 0 {
		c.MaxInputTokens = defaultMaxInputTokens
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Validator == nil {
		c.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	if mode, ok := ParsePerformanceMode(string(c.PerformanceMode)); ok {
		c.PerformanceMode = mode
	} else {
		c.PerformanceMode = ModeBalanced
	}
}

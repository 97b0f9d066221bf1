package manager

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"codebuddy/internal/backend"
	"codebuddy/internal/profiler"
	"codebuddy/internal/prompt"
	"codebuddy/internal/workpool"
	"codebuddy/pkg/types"
)

type Manager struct {
	// opMu serializes load and unload transitions.
	opMu sync.Mutex
	mu   sync.RWMutex

	configs   map[string]types.ModelConfig
	order     []string
	formatter *prompt.Formatter
	backend   backend.Backend
	caps      profiler.Capabilities

	instances map[string]*Instance
	mode      PerformanceMode
	authToken string
	lastErr   string

	offloadDir     string
	cacheDir       string
	maxInputTokens int
	maxQueueDepth  int
	maxWait        time.Duration
	drainTimeout   time.Duration

	tokPool *workpool.Pool
	auxPool *workpool.Pool

	publisher EventPublisher
	log       zerolog.Logger
	metrics   *metrics
	validate  *validator.Validate

	// bg tracks detached unloads and preloads.
	bg        sync.WaitGroup
	startTime time.Time
	counts    counters
}

type counters struct {
	loads, evictions, unloads, fallbacks uint64
}

// New constructs a Manager. It fails when the model configs are unusable or
// no backend is given.
func New(cfg Config) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, configError{msg: "manager: backend is required"}
	}
	cfg.applyDefaults()
	f, err := prompt.NewFormatter(cfg.Models)
	if err != nil {
		return nil, configError{msg: fmt.Sprintf("manager: %v", err)}
	}
	m := &Manager{
		configs:        make(map[string]types.ModelConfig, len(cfg.Models)),
		formatter:      f,
		backend:        cfg.Backend,
		caps:           cfg.Capabilities,
		instances:      make(map[string]*Instance),
		mode:           cfg.PerformanceMode,
		authToken:      cfg.AuthToken,
		offloadDir:     cfg.OffloadDir,
		cacheDir:       cfg.CacheDir,
		maxInputTokens: cfg.MaxInputTokens,
		maxQueueDepth:  cfg.MaxQueueDepth,
		maxWait:        cfg.MaxWait,
		drainTimeout:   cfg.DrainTimeout,
		tokPool:        workpool.New("tokenize", cfg.Capabilities.TokenizationThreads),
		auxPool:        workpool.New("aux", cfg.Capabilities.AuxThreads()),
		publisher:      cfg.Publisher,
		log:            cfg.Logger,
		validate:       cfg.Validator,
		startTime:      time.Now(),
	}
	for _, c := range cfg.Models {
		lang := strings.ToLower(strings.TrimSpace(c.Language))
		c.Language = lang
		m.configs[lang] = c
		m.order = append(m.order, lang)
	}
	m.metrics = newMetrics(cfg.Registerer)
	return m, nil
}

// Languages returns the configured language keys, default first.
func (m *Manager) Languages() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Configs returns the model configs in registration order.
func (m *Manager) Configs() []types.ModelConfig {
	out := make([]types.ModelConfig, 0, len(m.order))
	for _, l := range m.order {
		out = append(out, m.configs[l])
	}
	return out
}

// Capabilities returns the host profile the manager was built with.
func (m *Manager) Capabilities() profiler.Capabilities { return m.caps }

// IsLoaded reports whether language has a resident model.
func (m *Manager) IsLoaded(language string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances[m.normalize(language)]
	return inst != nil && inst.State == StateResident
}

// Resident returns the resident language, if any.
func (m *Manager) Resident() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for lang, inst := range m.instances {
		if inst.State == StateResident {
			return lang, true
		}
	}
	return "", false
}

// normalize lower-cases language; empty selects the default.
func (m *Manager) normalize(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if l == "" && len(m.order) > 0 {
		return m.order[0]
	}
	return l
}

func (m *Manager) config(language string) (types.ModelConfig, error) {
	c, ok := m.configs[language]
	if !ok {
		return types.ModelConfig{}, ErrUnsupportedLanguage(language)
	}
	return c, nil
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	if err == nil {
		m.lastErr = ""
	} else {
		m.lastErr = err.Error()
	}
	m.mu.Unlock()
}

// Package config loads codebuddyd settings from YAML, JSON or TOML files and
// the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"codebuddy/internal/common/fsutil"
	"codebuddy/pkg/types"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir   string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	TrainingDir string `json:"training_dir" yaml:"training_dir" toml:"training_dir"`
	CacheDir    string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	OffloadDir  string `json:"offload_dir" yaml:"offload_dir" toml:"offload_dir"`
	// AuthToken is passed to the backend for gated model repositories.
	AuthToken       string `json:"auth_token" yaml:"auth_token" toml:"auth_token"`
	PerformanceMode string `json:"performance_mode" yaml:"performance_mode" toml:"performance_mode"`

	MaxInputTokens  int      `json:"max_input_tokens" yaml:"max_input_tokens" toml:"max_input_tokens"`
	MaxQueueDepth   int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait         Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	DrainTimeout    Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	GenerateTimeout Duration `json:"generate_timeout" yaml:"generate_timeout" toml:"generate_timeout"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	LlamaServer LlamaServer         `json:"llama_server" yaml:"llama_server" toml:"llama_server"`
	Models      []types.ModelConfig `json:"models" yaml:"models" toml:"models"`
}

// LlamaServer configures the llama.cpp server backend.
type LlamaServer struct {
	Bin            string            `json:"bin" yaml:"bin" toml:"bin"`
	Host           string            `json:"host" yaml:"host" toml:"host"`
	PortStart      int               `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd        int               `json:"port_end" yaml:"port_end" toml:"port_end"`
	CtxSize        int               `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	StartupTimeout Duration          `json:"startup_timeout" yaml:"startup_timeout" toml:"startup_timeout"`
	ExtraArgs      []string          `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	HFRepos        map[string]string `json:"hf_repos" yaml:"hf_repos" toml:"hf_repos"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

const (
	DefaultAddr        = ":5000"
	DefaultModelID     = "meta-llama/CodeLlama-13b-Instruct-hf"
	DefaultGGUFRepo    = "TheBloke/CodeLlama-13B-Instruct-GGUF"
	defaultTrainingDir = "training_data"
	defaultCacheDir    = "models"
	defaultCtxSize     = 4096

	pythonTemplate     = "Write Python code for the following request:\n\n{prompt}\n\nCode:"
	powershellTemplate = "You are an expert PowerShell programmer. Write PowerShell code for the following request:\n\n{prompt}\n\nEnsure the code follows PowerShell best practices and includes comments. Provide only the code.\n\n```powershell"
)

// DefaultModels returns the Python and PowerShell language configurations.
func DefaultModels() []types.ModelConfig {
	return []types.ModelConfig{
		{Language: "python", ModelID: DefaultModelID, PromptTemplate: pythonTemplate, SupportsMultiTurn: true},
		{Language: "powershell", ModelID: DefaultModelID, PromptTemplate: powershellTemplate, SupportsMultiTurn: true},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadOptional loads path when it names an existing file and returns a zero
// Config for an empty path.
func LoadOptional(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, nil
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return Config{}, err
	}
	if !fsutil.PathExists(p) {
		return Config{}, fmt.Errorf("config file not found: %s", path)
	}
	return Load(p)
}

// ApplyEnv overrides fields from CODEBUDDY_ADDR and HUGGING_FACE_HUB_TOKEN.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("CODEBUDDY_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(getenv("HUGGING_FACE_HUB_TOKEN")); v != "" {
		c.AuthToken = v
	}
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.TrainingDir == "" {
		c.TrainingDir = defaultTrainingDir
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.PerformanceMode == "" {
		c.PerformanceMode = "balanced"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.LlamaServer.CtxSize <= 0 {
		c.LlamaServer.CtxSize = defaultCtxSize
	}
	if len(c.Models) == 0 {
		c.Models = DefaultModels()
	}
	if c.LlamaServer.HFRepos == nil {
		c.LlamaServer.HFRepos = map[string]string{}
	}
	for _, m := range c.Models {
		if m.ModelID == DefaultModelID {
			if _, ok := c.LlamaServer.HFRepos[m.ModelID]; !ok {
				c.LlamaServer.HFRepos[m.ModelID] = DefaultGGUFRepo
			}
		}
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		lang := strings.ToLower(strings.TrimSpace(m.Language))
		switch {
		case lang == "":
			return fmt.Errorf("models[%d]: empty language", i)
		case strings.TrimSpace(m.ModelID) == "":
			return fmt.Errorf("models[%d] (%s): empty model_id", i, lang)
		case seen[lang]:
			return fmt.Errorf("models[%d]: duplicate language %q", i, lang)
		}
		seen[lang] = true
	}
	s := c.LlamaServer
	if (s.PortStart == 0) != (s.PortEnd == 0) || s.PortStart > s.PortEnd {
		return fmt.Errorf("llama_server: invalid port range %d-%d", s.PortStart, s.PortEnd)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	return nil
}

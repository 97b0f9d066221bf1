package manager

import (
	"strings"
	"time"

	"codebuddy/internal/backend"
	"codebuddy/internal/quant"
)

// State is the lifecycle state of one language.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateResident State = "resident"
	StateDraining State = "draining"
)

// PerformanceMode trades latency against memory use.
type PerformanceMode string

const (
	ModeBalanced PerformanceMode = "balanced"
	ModeSpeed    PerformanceMode = "speed"
	// ModeMemory unloads the model after every generation.
	ModeMemory PerformanceMode = "memory"
)

// ParsePerformanceMode returns the mode named by s; ok is false for unknown
// names, in which case ModeBalanced is returned.
func ParsePerformanceMode(s string) (PerformanceMode, bool) {
	switch PerformanceMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBalanced:
		return ModeBalanced, true
	case ModeSpeed:
		return ModeSpeed, true
	case ModeMemory:
		return ModeMemory, true
	default:
		return ModeBalanced, false
	}
}

// Instance is the resident entry of one language.
type Instance struct {
	Language string
	ModelID  string
	State    State
	Spec     quant.Spec
	LoadedAt time.Time
	LastUsed time.Time

	model     backend.Model
	tokenizer backend.Tokenizer

	// genCh holds the single in-flight generation, queueCh the waiters.
	genCh   chan struct{}
	queueCh chan struct{}
}

// Package backend defines the boundary between the model lifecycle manager and
// an inference runtime.
package backend

import (
	"context"
	"errors"

	"codebuddy/internal/profiler"
	"codebuddy/internal/quant"
)

// ErrOutOfMemory is wrapped by backends when a load or generation ran out of
// device or host memory.
var ErrOutOfMemory = errors.New("out of memory")

// ErrUnavailable is wrapped when the runtime itself is missing, for example
// an absent server binary. No load strategy can succeed.
var ErrUnavailable = errors.New("inference runtime unavailable")

// IsOutOfMemory reports whether err was caused by memory exhaustion.
func IsOutOfMemory(err error) bool { return errors.Is(err, ErrOutOfMemory) }

// LoadOptions carries per-load settings that do not depend on the rung.
type LoadOptions struct {
	// AuthToken authorizes downloads of gated model repositories.
	AuthToken string
	// CacheDir holds downloaded model artifacts.
	CacheDir     string
	Capabilities profiler.Capabilities
}

// Backend loads tokenizers and models.
type Backend interface {
	LoadTokenizer(ctx context.Context, modelID string, opts LoadOptions) (Tokenizer, error)
	LoadModel(ctx context.Context, modelID string, spec quant.Spec, opts LoadOptions) (Model, error)
}

// DeviceReclaimer is implemented by backends that can release cached device
// memory after a model was freed.
type DeviceReclaimer interface {
	ReclaimDevice() error
}

// Encoding is a tokenized input.
type Encoding struct {
	IDs           []int
	AttentionMask []int
}

// Len returns the number of tokens.
func (e Encoding) Len() int { return len(e.IDs) }

// TruncateLeft keeps the last n tokens.
func (e Encoding) TruncateLeft(n int) Encoding {
	if n <= 0 || len(e.IDs) <= n {
		return e
	}
	out := Encoding{IDs: e.IDs[len(e.IDs)-n:]}
	if len(e.AttentionMask) == len(e.IDs) {
		out.AttentionMask = e.AttentionMask[len(e.AttentionMask)-n:]
	}
	return out
}

// SpecialTokens are tokenizer control ids; negative means unset.
type SpecialTokens struct {
	BOS int
	EOS int
	Pad int
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode tokenizes text. When maxTokens > 0 and the input is longer, the
	// oldest tokens are dropped.
	Encode(ctx context.Context, text string, maxTokens int) (Encoding, error)
	Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error)
	Special() SpecialTokens
	SetPad(id int)
}

// SamplingParams controls one generate call.
type SamplingParams struct {
	DoSample          bool
	Temperature       float64
	RepetitionPenalty float64
	TopK              int
	TopP              float64
	NumBeams          int
	EarlyStopping     bool
	MaxNewTokens      int
	PadTokenID        int
	UseCache          bool
	// MixedPrecision runs the forward pass under autocast.
	MixedPrecision bool
}

// Model is a loaded model.
type Model interface {
	// Generate returns the full sequence: input ids followed by new ids.
	Generate(ctx context.Context, in Encoding, p SamplingParams) ([]int, error)
	// Offload moves weights off the compute device ahead of Close.
	Offload() error
	Close() error
}

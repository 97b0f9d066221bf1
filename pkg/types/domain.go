package types

// ModelConfig is the static configuration of one supported language.
type ModelConfig struct {
	// Language key, lower-cased.
	// example: python
	Language string `json:"language" yaml:"language" toml:"language" example:"python"`
	// Model identifier understood by the inference backend.
	// example: meta-llama/CodeLlama-13b-Instruct-hf
	ModelID string `json:"model_id" yaml:"model_id" toml:"model_id" example:"meta-llama/CodeLlama-13b-Instruct-hf"`
	// Single-turn template; {prompt} is replaced with the user message.
	PromptTemplate string `json:"prompt_template" yaml:"prompt_template" toml:"prompt_template"`
	// Whether conversation history is rendered into the prompt.
	// example: true
	SupportsMultiTurn bool `json:"supports_multiturn" yaml:"supports_multiturn" toml:"supports_multiturn" example:"true"`
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation history.
type Turn struct {
	// example: user
	Role Role `json:"role" example:"user"`
	// example: Write a function that reverses a string.
	Content string `json:"content" example:"Write a function that reverses a string."`
}

// GenerationRequest is the input of a single code generation.
// Zero values of the sampling fields select server defaults.
type GenerationRequest struct {
	// User message to answer.
	// example: Write a function that reverses a string.
	Prompt string `json:"prompt" validate:"required" example:"Write a function that reverses a string."`
	// Prior conversation, oldest first.
	History []Turn `json:"history,omitempty" validate:"omitempty,dive"`
	// Language key; detected from the prompt when empty.
	// example: python
	Language string `json:"language,omitempty" validate:"omitempty,lowercase" example:"python"`
	// Sampling temperature in [0,1].
	// example: 0.2
	Temperature float64 `json:"temperature,omitempty" validate:"gte=0,lte=1" example:"0.2"`
	// Upper bound on generated tokens.
	// example: 1024
	MaxNewTokens int `json:"max_new_tokens,omitempty" validate:"gte=0,lte=8192" example:"1024"`
	// Repetition penalty, at least 1.0 when set.
	// example: 1.1
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" validate:"omitempty,gte=1" example:"1.1"`
}

// ChunkKind tags a streamed generation item.
type ChunkKind string

const (
	ChunkStatus  ChunkKind = "status"
	ChunkPartial ChunkKind = "partial"
	ChunkFinal   ChunkKind = "final"
)

// Chunk is one item of a generation stream.
type Chunk struct {
	// example: final
	Kind ChunkKind `json:"kind" example:"final"`
	Text string    `json:"text"`
	// example: python
	Language string `json:"language,omitempty" example:"python"`
}

// Model is a model artifact discovered on disk.
type Model struct {
	// Normalized base name shared by all quantization variants.
	// example: codellama-13b-instruct
	ID string `json:"id" example:"codellama-13b-instruct"`
	// File name of this variant.
	// example: codellama-13b-instruct.Q4_K_M.gguf
	Name string `json:"name" example:"codellama-13b-instruct.Q4_K_M.gguf"`
	// Absolute path to the file.
	Path string `json:"path"`
	// Quantization tag parsed from the file name, upper-cased.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// TrainingRecord is one persisted training example.
type TrainingRecord struct {
	Instruction       string `json:"instruction"`
	Response          string `json:"response,omitempty"`
	CodebuddyResponse string `json:"codebuddy_response,omitempty"`
	OtherAIResponse   string `json:"other_ai_response,omitempty"`
	OtherAIName       string `json:"other_ai_name,omitempty"`
	ComparisonNotes   string `json:"comparison_notes,omitempty"`
	Source            string `json:"source"`
	Language          string `json:"language"`
	Timestamp         string `json:"timestamp"`
}

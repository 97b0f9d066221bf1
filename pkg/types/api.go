package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelsResponse wraps the language configurations returned by GET /models.
type ModelsResponse struct {
	Models []ModelConfig `json:"models"`
	// Model files found in the models directory, if one is configured.
	Files []Model `json:"files,omitempty"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Generated code with any surrounding fence removed.
	Code string `json:"code"`
	// example: python
	Language string `json:"language" example:"python"`
}

// DetectRequest is the body of POST /detect.
type DetectRequest struct {
	// example: Get-ChildItem recursively and list sizes
	Prompt string `json:"prompt" validate:"required" example:"Get-ChildItem recursively and list sizes"`
}

// DetectResponse is returned by POST /detect.
type DetectResponse struct {
	// example: powershell
	Language string `json:"language" example:"powershell"`
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	// example: powershell
	Language string `json:"language" validate:"required" example:"powershell"`
}

// SwitchResponse is returned by POST /switch.
type SwitchResponse struct {
	// Identifier of the background load operation.
	OpID     string `json:"op_id"`
	Language string `json:"language"`
}

// ModelActionResponse is returned by load and unload endpoints.
type ModelActionResponse struct {
	// example: python
	Language string `json:"language" example:"python"`
	// Whether the requested transition took effect.
	// example: true
	OK bool `json:"ok" example:"true"`
}

// PerformanceModeRequest is the body of PUT /performance-mode.
type PerformanceModeRequest struct {
	// One of balanced, speed, memory. Other values select balanced.
	// example: memory
	Mode string `json:"mode" example:"memory"`
}

// PerformanceModeResponse reports the mode in effect.
type PerformanceModeResponse struct {
	// example: memory
	Mode string `json:"mode" example:"memory"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	// Conversation to take the last user/assistant pair from.
	History []Turn `json:"history" validate:"required,min=2,dive"`
	// true for positive feedback.
	Positive bool `json:"positive"`
}

// TrainingExampleRequest is the body of POST /training.
type TrainingExampleRequest struct {
	Instruction string `json:"instruction" validate:"required"`
	Response    string `json:"response" validate:"required"`
	// Optional source label; Manual when empty.
	Source string `json:"source,omitempty"`
}

// ComparisonRequest is the body of POST /training/comparison.
type ComparisonRequest struct {
	Instruction       string `json:"instruction" validate:"required"`
	CodebuddyResponse string `json:"codebuddy_response" validate:"required"`
	OtherAIResponse   string `json:"other_ai_response" validate:"required"`
	// example: ChatGPT
	OtherAIName string `json:"other_ai_name" validate:"required" example:"ChatGPT"`
	// Optional language key; detected from the instruction when empty.
	Language string `json:"language,omitempty"`
}

// NotesRequest is the body of PUT /training/{name}/notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// SaveResult reports the outcome of a training store write.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// File name of the record, when one was written.
	Name string `json:"name,omitempty"`
}

// TrainingSummary is one row of GET /training.
type TrainingSummary struct {
	// example: Manual_Python_20240101_120000.json
	Name string `json:"name" example:"Manual_Python_20240101_120000.json"`
	// Display label of the record source.
	// example: Positive Feedback
	Source string `json:"source" example:"Positive Feedback"`
	// example: Python
	Language string `json:"language" example:"Python"`
	// example: 20240101_120000
	Timestamp string `json:"timestamp" example:"20240101_120000"`
	// First 50 characters of the instruction.
	Preview string `json:"preview"`
}

// TrainingListResponse is returned by GET /training.
type TrainingListResponse struct {
	Examples []TrainingSummary `json:"examples"`
}

// InstanceStatus summarizes a resident or transitioning model for /status.
type InstanceStatus struct {
	// example: python
	Language string `json:"language" example:"python"`
	// example: meta-llama/CodeLlama-13b-Instruct-hf
	ModelID string `json:"model_id" example:"meta-llama/CodeLlama-13b-Instruct-hf"`
	// Prompt layout used for the model.
	// example: instruct_chat
	PromptFamily string `json:"prompt_family,omitempty" example:"instruct_chat"`
	// One of loading, resident, draining.
	// example: resident
	State string `json:"state" example:"resident"`
	// Quantization ladder rung that succeeded (1-3).
	// example: 1
	Rung int `json:"rung,omitempty" example:"1"`
	// example: nf4
	Precision string `json:"precision,omitempty" example:"nf4"`
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix,omitempty" example:"1700000000"`
	// example: 1700000000
	LastUsed      int64 `json:"last_used_unix" example:"1700000000"`
	QueueLen      int   `json:"queue_len"`
	Inflight      int   `json:"inflight"`
	MaxQueueDepth int   `json:"max_queue_depth"`
}

// HostStatus reports the probed host capabilities.
type HostStatus struct {
	CPUModel            string `json:"cpu_model"`
	PhysicalCores       int    `json:"physical_cores"`
	LogicalCores        int    `json:"logical_cores"`
	TunedCPU            bool   `json:"tuned_cpu"`
	GPUPresent          bool   `json:"gpu_present"`
	GPUName             string `json:"gpu_name,omitempty"`
	GPUMemoryMB         int64  `json:"gpu_memory_mb,omitempty"`
	GPUComputeClass     string `json:"gpu_compute_class"`
	HostMemoryMB        int64  `json:"host_memory_mb"`
	InferenceThreads    int    `json:"inference_threads"`
	TokenizationThreads int    `json:"tokenization_threads"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Instances []InstanceStatus `json:"instances"`
	// example: balanced
	PerformanceMode string     `json:"performance_mode" example:"balanced"`
	Host            HostStatus `json:"host"`
	// Last error observed by the manager, if any.
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds  int64  `json:"uptime_seconds" example:"3600"`
	ServerTimeUnix int64  `json:"server_time_unix"`
	LoadsTotal     uint64 `json:"loads_total"`
	EvictionsTotal uint64 `json:"evictions_total"`
	UnloadsTotal   uint64 `json:"unloads_total"`
	FallbacksTotal uint64 `json:"fallbacks_total"`
}

package llamaserver

import (
	"context"
	"sync"

	"codebuddy/internal/backend"
)

// Model is a backend.Model served by one llama-server process.
type Model struct {
	b       *Backend
	p       *process
	s       *session
	modelID string

	closeOnce sync.Once
}

var _ backend.Model = (*Model)(nil)

// completionRequest is the native /completion payload. llama-server has no
// beam search, so NumBeams and EarlyStopping are not sent.
type completionRequest struct {
	Prompt        []int   `json:"prompt"`
	NPredict      int     `json:"n_predict,omitempty"`
	Temperature   float64 `json:"temperature"`
	TopK          int     `json:"top_k,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	CachePrompt   bool    `json:"cache_prompt"`
	ReturnTokens  bool    `json:"return_tokens"`
	Stream        bool    `json:"stream"`
}

type completionResponse struct {
	Content string `json:"content"`
	Tokens  []int  `json:"tokens"`
	Stop    bool   `json:"stop"`
}

func (m *Model) Generate(ctx context.Context, in backend.Encoding, p backend.SamplingParams) ([]int, error) {
	req := completionRequest{
		Prompt:        in.IDs,
		NPredict:      p.MaxNewTokens,
		Temperature:   p.Temperature,
		TopK:          p.TopK,
		TopP:          p.TopP,
		RepeatPenalty: p.RepetitionPenalty,
		CachePrompt:   p.UseCache,
		ReturnTokens:  true,
	}
	if !p.DoSample {
		req.Temperature = 0
	}
	var out completionResponse
	if err := m.s.post(ctx, "/completion", req, &out); err != nil {
		return nil, err
	}
	generated := out.Tokens
	if len(generated) == 0 && out.Content != "" {
		// older servers ignore return_tokens
		var tok tokenizeResponse
		if err := m.s.post(ctx, "/tokenize", tokenizeRequest{Content: out.Content}, &tok); err != nil {
			return nil, err
		}
		generated = tok.Tokens
	}
	seq := make([]int, 0, len(in.IDs)+len(generated))
	seq = append(seq, in.IDs...)
	return append(seq, generated...), nil
}

// Offload detaches the tokenizer and asks the server to exit, releasing its
// GPU allocation.
func (m *Model) Offload() error {
	m.s.detach()
	m.p.terminate()
	return nil
}

// Close waits for the server to exit, killing it after the stop timeout.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		m.s.detach()
		m.b.stopProcess(m.p)
		m.b.cfg.Logger.Info().Str("model", m.modelID).Int("pid", m.p.pid).Msg("llamaserver event=stopped")
	})
	return nil
}

// PID of the serving process.
func (m *Model) PID() int { return m.p.pid }

// BaseURL of the serving process.
func (m *Model) BaseURL() string { return m.p.baseURL }

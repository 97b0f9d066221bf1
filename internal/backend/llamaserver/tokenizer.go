package llamaserver

import (
	"context"
	"strings"
	"sync"

	"codebuddy/internal/backend"
)

// Llama vocabulary control ids.
const (
	llamaBOS = 1
	llamaEOS = 2
)

// bosLiteral is the textual BOS marker the instruct prompt layout opens with.
const bosLiteral = "<s>"

func defaultSpecial() backend.SpecialTokens {
	return backend.SpecialTokens{BOS: llamaBOS, EOS: llamaEOS, Pad: -1}
}

// Tokenizer calls /tokenize and /detokenize on the model's server.
type Tokenizer struct {
	s *session

	mu      sync.RWMutex
	special backend.SpecialTokens
}

var _ backend.Tokenizer = (*Tokenizer)(nil)

type tokenizeRequest struct {
	Content      string `json:"content"`
	AddSpecial   bool   `json:"add_special"`
	ParseSpecial bool   `json:"parse_special"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

// Encode tokenizes text. A prompt that already opens with a literal BOS
// gets no second one from the server.
func (t *Tokenizer) Encode(ctx context.Context, text string, maxTokens int) (backend.Encoding, error) {
	req := tokenizeRequest{
		Content:      text,
		AddSpecial:   !strings.HasPrefix(text, bosLiteral),
		ParseSpecial: true,
	}
	var out tokenizeResponse
	if err := t.s.post(ctx, "/tokenize", req, &out); err != nil {
		return backend.Encoding{}, err
	}
	mask := make([]int, len(out.Tokens))
	for i := range mask {
		mask[i] = 1
	}
	return backend.Encoding{IDs: out.Tokens, AttentionMask: mask}.TruncateLeft(maxTokens), nil
}

func (t *Tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	if skipSpecial {
		sp := t.Special()
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if id == sp.BOS || id == sp.EOS || (sp.Pad >= 0 && id == sp.Pad) {
				continue
			}
			kept = append(kept, id)
		}
		ids = kept
	}
	if len(ids) == 0 {
		return "", nil
	}
	var out detokenizeResponse
	if err := t.s.post(ctx, "/detokenize", detokenizeRequest{Tokens: ids}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (t *Tokenizer) Special() backend.SpecialTokens {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.special
}

func (t *Tokenizer) SetPad(id int) {
	t.mu.Lock()
	t.special.Pad = id
	t.mu.Unlock()
}

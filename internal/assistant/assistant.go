// Package assistant is the caller-facing wrapper around the model manager:
// it reports progress as status chunks, fences the generated code and turns
// chat feedback into training examples.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"codebuddy/internal/manager"
	"codebuddy/pkg/types"
)

// Models is the subset of the model manager used here.
type Models interface {
	Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error
	IsLoaded(language string) bool
	Unload(language string) bool
	Languages() []string
	DetectLanguage(prompt string) string
	FormatCode(ctx context.Context, text, language string) (string, error)
}

// FeedbackStore persists rated conversation turns.
type FeedbackStore interface {
	SaveFeedback(history []types.Turn, positive bool) (string, error)
}

type Assistant struct {
	models Models
	store  FeedbackStore
	log    zerolog.Logger
}

// New returns an Assistant. store may be nil, in which case Feedback fails.
func New(models Models, store FeedbackStore, log zerolog.Logger) *Assistant {
	return &Assistant{models: models, store: store, log: log}
}

// Generate runs req and emits status chunks followed by one final chunk with
// the code fenced for its language. An explicit language unloads the other
// languages first. A language with no configured model fails before any
// model is touched or any chunk is emitted.
func (a *Assistant) Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error {
	lang, explicit := selectedLanguage(req.Language)
	target := lang
	if !explicit {
		target = a.models.DetectLanguage(req.Prompt)
	}
	if !a.supports(target) {
		return manager.ErrUnsupportedLanguage(target)
	}
	if explicit {
		for _, other := range a.models.Languages() {
			if other == lang || !a.models.IsLoaded(other) {
				continue
			}
			if a.models.Unload(other) {
				if err := status(emit, other, fmt.Sprintf("Unloaded %s model to free memory", title(other))); err != nil {
					return err
				}
			}
		}
	}

	if err := status(emit, lang, "Detecting language..."); err != nil {
		return err
	}
	lang = target
	if !a.models.IsLoaded(lang) {
		if err := status(emit, lang, fmt.Sprintf("Loading %s model. This may take a moment...", title(lang))); err != nil {
			return err
		}
	}
	if err := status(emit, lang, fmt.Sprintf("Generating %s code...", title(lang))); err != nil {
		return err
	}

	req.Language = lang
	return a.models.Generate(ctx, req, func(c types.Chunk) error {
		if c.Kind != types.ChunkFinal {
			return emit(c)
		}
		code, err := a.models.FormatCode(ctx, c.Text, c.Language)
		if err != nil {
			return err
		}
		c.Text = code
		return emit(c)
	})
}

// Feedback saves the last user/assistant exchange of history.
func (a *Assistant) Feedback(history []types.Turn, positive bool) (string, error) {
	if a.store == nil {
		return "", fmt.Errorf("feedback: no training store configured")
	}
	name, err := a.store.SaveFeedback(history, positive)
	if err != nil {
		a.log.Warn().Err(err).Bool("positive", positive).Msg("assistant event=feedback_failed")
		return "", err
	}
	return name, nil
}

// UnloadAll unloads every resident language and returns their names.
func (a *Assistant) UnloadAll() []string {
	var out []string
	for _, lang := range a.models.Languages() {
		if a.models.IsLoaded(lang) && a.models.Unload(lang) {
			out = append(out, lang)
		}
	}
	return out
}

// selectedLanguage reports the requested language, or false when the model
// should detect it.
func (a *Assistant) supports(lang string) bool {
	for _, l := range a.models.Languages() {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

func selectedLanguage(s string) (string, bool) {
	l := strings.ToLower(strings.TrimSpace(s))
	if l == "" || l == "auto" || l == "auto detect" {
		return "", false
	}
	return l, true
}

func status(emit func(types.Chunk) error, lang, text string) error {
	return emit(types.Chunk{Kind: types.ChunkStatus, Text: text, Language: lang})
}

func title(lang string) string {
	r := []rune(lang)
	if len(r) == 0 {
		return lang
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

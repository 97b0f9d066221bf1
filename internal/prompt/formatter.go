package prompt

import (
	"errors"
	"fmt"
	"strings"

	"codebuddy/pkg/types"
)

// ErrUnknownLanguage is returned for a language with no registered config.
var ErrUnknownLanguage = errors.New("unknown language")

type entry struct {
	cfg    types.ModelConfig
	family Family
}

// Formatter renders prompts for a fixed set of language configs. Families are
// resolved once at construction. Safe for concurrent use.
type Formatter struct {
	entries     map[string]entry
	defaultLang string
}

// NewFormatter registers configs. The first config is the default language.
func NewFormatter(configs []types.ModelConfig) (*Formatter, error) {
	if len(configs) == 0 {
		return nil, errors.New("prompt: no model configs")
	}
	f := &Formatter{entries: make(map[string]entry, len(configs))}
	for _, c := range configs {
		lang := strings.ToLower(strings.TrimSpace(c.Language))
		if lang == "" {
			return nil, errors.New("prompt: model config with empty language")
		}
		if _, dup := f.entries[lang]; dup {
			return nil, fmt.Errorf("prompt: duplicate language %q", lang)
		}
		c.Language = lang
		f.entries[lang] = entry{cfg: c, family: ResolveFamily(c.ModelID)}
		if f.defaultLang == "" {
			f.defaultLang = lang
		}
	}
	return f, nil
}

// Family reports the resolved family for language.
func (f *Formatter) Family(language string) (Family, bool) {
	e, ok := f.entries[f.normalize(language)]
	return e.family, ok
}

// Format builds the prompt for message given history (oldest first).
// An empty language selects the default one.
func (f *Formatter) Format(message string, history []types.Turn, language string) (string, error) {
	lang := f.normalize(language)
	e, ok := f.entries[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
	if len(history) == 0 || !e.cfg.SupportsMultiTurn {
		return renderTemplate(e.cfg.PromptTemplate, message), nil
	}
	switch e.family {
	case FamilyInstructChat:
		return formatInstruct(message, history, lang), nil
	case FamilyConversational:
		return formatTranscript(message, history, lang, "Human", "\n"), nil
	default:
		return formatTranscript(message, history, lang, "User", "\n\n"), nil
	}
}

func (f *Formatter) normalize(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return f.defaultLang
	}
	return lang
}

func renderTemplate(tmpl, message string) string {
	if tmpl == "" {
		return message
	}
	return strings.ReplaceAll(tmpl, "{prompt}", message)
}

type exchange struct{ user, assistant string }

func formatInstruct(message string, history []types.Turn, lang string) string {
	var b strings.Builder
	b.WriteString("<s>[INST] <<SYS>>\n")
	b.WriteString(instructSystem(lang))
	b.WriteString("\n<</SYS>>\n\n")

	var pairs []exchange
	var pending []string
	for _, t := range tail(history, instructHistoryLimit) {
		switch normalizeRole(t.Role) {
		case types.RoleUser:
			pending = append(pending, t.Content)
		case types.RoleAssistant:
			// Assistant turns pair with the most recent unanswered user turn.
			if n := len(pending); n > 0 {
				pairs = append(pairs, exchange{user: pending[n-1], assistant: t.Content})
				pending = pending[:n-1]
			}
		}
	}
	for _, p := range pairs {
		b.WriteString(p.user)
		b.WriteString(" [/INST] ")
		b.WriteString(p.assistant)
		b.WriteString(" </s><s>[INST] ")
	}

	// Unanswered user turns share the open block with the current message.
	if n := len(pending); n > 0 && pending[n-1] == message {
		pending = pending[:n-1]
	}
	for _, u := range pending {
		b.WriteString(u)
		b.WriteString("\n")
	}
	b.WriteString(message)
	b.WriteString(" [/INST] ")
	return b.String()
}

func formatTranscript(message string, history []types.Turn, lang, userLabel, sep string) string {
	lines := []string{"System: " + transcriptSystem(lang)}
	for _, t := range tail(history, conversationalHistoryLimit) {
		switch normalizeRole(t.Role) {
		case types.RoleUser:
			lines = append(lines, userLabel+": "+t.Content)
		case types.RoleAssistant:
			lines = append(lines, "Assistant: "+t.Content)
		}
	}
	// A trailing user turn already carries the current message.
	if normalizeRole(history[len(history)-1].Role) != types.RoleUser {
		lines = append(lines, userLabel+": "+message)
	}
	lines = append(lines, "Assistant:")
	return strings.Join(lines, sep)
}

func tail(history []types.Turn, n int) []types.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func normalizeRole(r types.Role) types.Role {
	return types.Role(strings.ToLower(strings.TrimSpace(string(r))))
}

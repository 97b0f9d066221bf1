package postprocess

import "strings"

const answerPrefix = "Answer: "

// FormatCode normalizes a cleaned response and wraps it in a markdown fence
// tagged with language. An existing fence for the same language is unwrapped
// first so the result never carries two.
func FormatCode(text, language string) string {
	code := strings.TrimPrefix(text, answerPrefix)
	code = strings.ReplaceAll(code, `\begin{code}`, "")
	code = strings.ReplaceAll(code, `\end{code}`, "")
	code = strings.TrimSpace(code)

	if strings.HasPrefix(code, "```") && strings.Contains(strings.ToLower(head(code, 20)), strings.ToLower(language)) {
		lines := strings.Split(code, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			code = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return "```" + language + "\n" + code + "\n```"
}

// UnwrapFence removes one outer markdown fence, including its info string,
// from text. Text without a complete fence is returned trimmed.
func UnwrapFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// head returns at most n bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

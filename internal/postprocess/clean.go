// Package postprocess turns raw model output into presentable text.
package postprocess

import "strings"

// controlTokens are chat-template markers that leak into decoded output.
var controlTokens = []string{
	"</s>",
	"<s>",
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
	"<|assistant|>",
	"<|user|>",
	"<|system|>",
	"<|im_start|>",
	"<|im_end|>",
	"<|assistant_name|>",
	"<|assistant_description|>",
	"<pad>",
}

// Clean strips template tags from raw model output, drops lines that consist
// only of a bracketed marker, and trims surrounding whitespace.
// Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	out := raw
	// Removing one tag can splice the halves of another together, so repeat
	// until nothing changes.
	for {
		next := out
		for _, tag := range controlTokens {
			next = strings.ReplaceAll(next, tag, "")
		}
		if next == out {
			break
		}
		out = next
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isMarkerLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isMarkerLine(line string) bool {
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>") {
		return true
	}
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// Package langdetect classifies prompts into a target programming language.
package langdetect

import "strings"

const (
	Python     = "python"
	PowerShell = "powershell"
)

// powershellMarkers are matched as case-insensitive substrings.
var powershellMarkers = []string{
	"get-",
	"set-",
	"new-",
	"remove-",
	"invoke-",
	"windows",
	"azure",
	"active directory",
	"powershell",
	"cmdlet",
}

// Detect returns PowerShell when the prompt mentions any PowerShell marker,
// Python otherwise.
func Detect(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, m := range powershellMarkers {
		if strings.Contains(lower, m) {
			return PowerShell
		}
	}
	return Python
}

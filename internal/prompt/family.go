// Package prompt renders a user message and its conversation history into a
// model-specific prompt string.
package prompt

import "strings"

// Family selects the prompt layout a model was trained on.
type Family int

const (
	// FamilyGeneric is a blank-line separated User/Assistant transcript.
	FamilyGeneric Family = iota
	// FamilyInstructChat is the Llama 2 [INST] <<SYS>> layout.
	FamilyInstructChat
	// FamilyConversational is a Human/Assistant line transcript (Phi models).
	FamilyConversational
)

func (f Family) String() string {
	switch f {
	case FamilyInstructChat:
		return "instruct_chat"
	case FamilyConversational:
		return "conversational"
	default:
		return "generic"
	}
}

// ResolveFamily maps a model identifier to its prompt family.
func ResolveFamily(modelID string) Family {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "llama") && strings.Contains(id, "instruct"):
		return FamilyInstructChat
	case strings.Contains(id, "phi"):
		return FamilyConversational
	default:
		return FamilyGeneric
	}
}

const (
	instructHistoryLimit       = 10
	conversationalHistoryLimit = 5
)

func instructSystem(language string) string {
	switch language {
	case "python":
		return "You are a helpful coding assistant specialized in Python. Write clean, efficient, and well-commented Python code that solves the user's problem."
	case "powershell":
		return "You are a helpful coding assistant specialized in PowerShell. Write clean, efficient, and well-commented PowerShell code that solves the user's problem."
	default:
		return "You are a helpful coding assistant. Write clean, efficient, and well-commented code that solves the user's problem."
	}
}

func transcriptSystem(language string) string {
	switch language {
	case "python":
		return "You are a helpful Python programming assistant. Write clean, efficient Python code."
	case "powershell":
		return "You are a helpful PowerShell programming assistant. Write clean, efficient PowerShell code."
	default:
		return "You are a helpful programming assistant. Write clean, efficient code."
	}
}

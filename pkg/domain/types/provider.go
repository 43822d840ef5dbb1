package types

import "fmt"

// ProviderID identifies an AI provider backend
type ProviderID string

const (
	ProviderOpenAI ProviderID = "openai"
	ProviderClaude ProviderID = "claude"
	ProviderGemini ProviderID = "gemini"
)

// AllProviders returns all supported provider identifiers
func AllProviders() []ProviderID {
	return []ProviderID{
		ProviderOpenAI,
		ProviderClaude,
		ProviderGemini,
	}
}

// IsValid checks if the provider identifier is supported
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
		return true
	default:
		return false
	}
}

// String returns the string representation of the provider identifier
func (p ProviderID) String() string {
	return string(p)
}

// ParseProviderID parses a string into a ProviderID
func ParseProviderID(s string) (ProviderID, error) {
	p := ProviderID(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid provider: %s", s)
	}
	return p, nil
}

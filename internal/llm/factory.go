package llm

import (
	"strings"

	"github.com/rotisserie/eris"
)

// NewProvider creates a new reasoning provider based on configuration
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "gemini":
		return NewGeminiProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, eris.Errorf("unknown LLM provider: %q (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

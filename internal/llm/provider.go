package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/model"
)

// Provider defines the interface for reasoning providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends one prompt and returns the raw model text
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// HarmCategory names a content-safety category
type HarmCategory string

const (
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// SafetySetting sets the block threshold for one category
type SafetySetting struct {
	Category  HarmCategory `json:"category"`
	Threshold string       `json:"threshold"`
}

// GenerateRequest contains the input for one reasoning call
type GenerateRequest struct {
	// Prompt is the user turn
	Prompt string

	// System is an optional system instruction
	System string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured temperature when set
	Temperature *float64

	// JSONMode asks the provider to emit a bare JSON document
	JSONMode bool

	// Shape is an optional example of the expected output structure
	Shape string

	// Safety overrides the configured safety settings when non-empty
	Safety []SafetySetting
}

// FullPrompt returns the prompt with the shape hint appended
func (r GenerateRequest) FullPrompt() string {
	if strings.TrimSpace(r.Shape) == "" {
		return r.Prompt
	}
	return r.Prompt + "\n\nRespond with a single JSON object shaped like:\n" + r.Shape
}

// GenerateResponse contains the raw model output
type GenerateResponse struct {
	Text         string
	Model        string
	TokensUsed   int
	FinishReason string
}

// Config holds reasoning provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout bounds every call
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	Temperature float64

	Safety []SafetySetting

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "gemini",
		Timeout:     60 * time.Second,
		MaxTokens:   8192,
		Temperature: 0.2,
		Safety:      PermissiveSafety(),
	}
}

// PermissiveSafety disables blocking for every category
func PermissiveSafety() []SafetySetting {
	return []SafetySetting{
		{Category: HarmHarassment, Threshold: "BLOCK_NONE"},
		{Category: HarmHateSpeech, Threshold: "BLOCK_NONE"},
		{Category: HarmSexuallyExplicit, Threshold: "BLOCK_NONE"},
		{Category: HarmDangerousContent, Threshold: "BLOCK_NONE"},
	}
}

// ConfigFromModel converts model.Config to llm.Config
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Safety:      SafetyFromModel(cfg.LLM.Safety),
		HTTPProxy:   cfg.HTTP.HTTPProxy,
		HTTPSProxy:  cfg.HTTP.HTTPSProxy,
		NoProxy:     cfg.HTTP.NoProxy,
	}
}

// SafetyFromModel maps configured thresholds onto categories.
// Empty thresholds are omitted.
func SafetyFromModel(s model.SafetyConfig) []SafetySetting {
	pairs := []SafetySetting{
		{Category: HarmHarassment, Threshold: s.Harassment},
		{Category: HarmHateSpeech, Threshold: s.HateSpeech},
		{Category: HarmSexuallyExplicit, Threshold: s.SexuallyExplicit},
		{Category: HarmDangerousContent, Threshold: s.DangerousContent},
	}
	out := make([]SafetySetting, 0, len(pairs))
	for _, p := range pairs {
		if p.Threshold != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}

func (c Config) maxTokens(req GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 4096
}

func (c Config) temperature(req GenerateRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}

func (c Config) model(req GenerateRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ppiankov/genesis/internal/util"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash-latest"

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider on the Gemini API backend
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, eris.New("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSuffix(config.BaseURL, "/") + "/"
	}

	// no network I/O happens for an API-key client
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, eris.Wrap(err, "create Gemini client")
	}

	return &GeminiProvider{client: client, config: config}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable checks if the API key can list models
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		zap.L().Warn("gemini availability check failed", zap.Error(err))
		return false
	}
	return true
}

// Generate calls generateContent with the configured safety settings
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := p.config.model(req, defaultGeminiModel)

	safety := req.Safety
	if len(safety) == 0 {
		safety = p.config.Safety
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.config.temperature(req))),
		MaxOutputTokens: int32(p.config.maxTokens(req)),
		SafetySettings:  make([]*genai.SafetySetting, 0, len(safety)),
	}
	for _, s := range safety {
		gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONMode {
		gc.ResponseMIMEType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.timeout())
	defer cancel()

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.FullPrompt()), gc)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return nil, classify(p.Name(), status, eris.Wrap(err, "generate content"))
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, newError(p.Name(), KindSafety, 0, eris.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, newError(p.Name(), KindEmpty, 0, eris.New("no candidates returned"))
	}

	finish := resp.Candidates[0].FinishReason
	if finish == genai.FinishReasonSafety || finish == genai.FinishReasonProhibitedContent {
		return nil, newError(p.Name(), KindSafety, 0, eris.Errorf("response blocked: %s", finish))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, newError(p.Name(), KindEmpty, 0, eris.Errorf("empty response (finish reason %s)", finish))
	}

	modelName := resp.ModelVersion
	if modelName == "" {
		modelName = model
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &GenerateResponse{
		Text:         text,
		Model:        modelName,
		TokensUsed:   tokens,
		FinishReason: string(finish),
	}, nil
}

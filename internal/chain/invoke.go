package chain

import (
	"context"
	"time"

	"github.com/ppiankov/genesis/internal/llm"
	"github.com/ppiankov/genesis/internal/metrics"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Invoker makes one reasoning call and extracts its structured object
type Invoker struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInvoker creates an Invoker. A positive timeout bounds every call on
// top of the provider's own limit.
func NewInvoker(provider llm.Provider, timeout time.Duration, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.L()
	}
	return &Invoker{provider: provider, timeout: timeout, logger: logger}
}

// Invoke sends req for task. Errors wrap ErrProviderFailed or
// ErrNoUsableContent; the cause is kept for logging only.
func (i *Invoker) Invoke(ctx context.Context, task string, req llm.GenerateRequest) (structured.Value, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	log := i.logger.With(zap.String("stage", task), zap.String("provider", i.provider.Name()))
	log.Debug("calling reasoning provider", zap.Int("prompt_chars", len(req.Prompt)))

	start := time.Now()
	resp, err := i.provider.Generate(ctx, req)
	if err != nil {
		metrics.RecordLLM(i.provider.Name(), false, 0, time.Since(start))
		log.Warn("reasoning call failed", zap.Error(err))
		return structured.Null(), eris.Wrapf(ErrProviderFailed, "%s: %s", task, llm.KindOf(err))
	}
	metrics.RecordLLM(i.provider.Name(), true, resp.TokensUsed, time.Since(start))

	res := structured.Extract(resp.Text)
	if !res.OK() {
		log.Warn("structured extraction failed", zap.String("snippet", res.Failure.RawSnippet))
		return structured.Null(), eris.Wrapf(ErrNoUsableContent, "%s: %s", task, res.Failure.Reason)
	}
	return res.Value, nil
}

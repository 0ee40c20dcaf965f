// Package llmtest provides a scripted reasoning provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ppiankov/genesis/internal/llm"
)

// Reply is one scripted answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Provider answers each request with the Reply of the first rule whose
// substring occurs in the prompt, else Default. It records every request.
// Unavailable makes IsAvailable report false.
type Provider struct {
	Rules       []Rule
	Default     Reply
	Unavailable bool

	mu       sync.Mutex
	requests []llm.GenerateRequest
}

// Rule matches prompts containing Contains
type Rule struct {
	Contains string
	Reply    Reply
}

// Name returns "fake"
func (p *Provider) Name() string { return "fake" }

// IsAvailable is true unless Unavailable is set
func (p *Provider) IsAvailable(context.Context) bool { return !p.Unavailable }

// Generate returns the scripted reply
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &llm.ProviderError{Provider: "fake", Kind: llm.KindTimeout, Err: err}
	}

	reply := p.Default
	prompt := req.FullPrompt()
	for _, r := range p.Rules {
		if strings.Contains(prompt, r.Contains) {
			reply = r.Reply
			break
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.GenerateResponse{Text: reply.Text, Model: "fake", TokensUsed: len(reply.Text) / 4}, nil
}

// Requests returns a copy of the recorded requests in call order
func (p *Provider) Requests() []llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.GenerateRequest(nil), p.requests...)
}

// Calls returns the number of Generate calls
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

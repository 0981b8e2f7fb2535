package fakeLLM

import (
	"context"
	"strings"
	"sync"

	"github.com/akolanti/SupportRAG/internal/rag/llm"
)

// Provider answers with a scripted reply, or with the first source block of the
// prompt when no reply is set. Every prompt is recorded.
type Provider struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []llm.Prompt
}

var _ llm.Provider = (*Provider)(nil)

func New() *Provider { return &Provider{} }

func (p *Provider) ModelID() string { return "fake/extractive" }

func (p *Provider) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	if p.Reply != "" {
		return p.Reply, nil
	}
	return extract(prompt.User), nil
}

func (p *Provider) Prompts() []llm.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Prompt(nil), p.prompts...)
}

func extract(user string) string {
	_, after, ok := strings.Cut(user, "source 1:")
	if !ok {
		return "I don't have information about this."
	}
	block, _, _ := strings.Cut(after, "\n\nsource 2:")
	lines := strings.SplitN(strings.TrimSpace(block), "\n", 2)
	if len(lines) < 2 {
		return strings.TrimSpace(lines[0])
	}
	return strings.TrimSpace(lines[1])
}

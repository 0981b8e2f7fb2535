package mcpserver

import "github.com/akolanti/SupportRAG/internal/rag"

// Ports holds what the tools call into.
type Ports struct {
	RAG rag.Service
}

func (p *Ports) Validate() error {
	if p == nil || p.RAG == nil {
		return ErrMissingRAGService
	}
	return nil
}

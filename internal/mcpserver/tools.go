package mcpserver

import (
	"context"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SearchInput struct {
	Query string `json:"query" jsonschema:"the customer question or keywords to search the help center for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 6)"`
}

type SearchOutput struct {
	Results []SourceOutput `json:"results"`
	Count   int            `json:"count"`
}

// SourceOutput is one help center passage with its citation.
type SourceOutput struct {
	DocID          string  `json:"doc_id"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	ChunkIndex     int     `json:"chunk_index"`
}

type AskInput struct {
	Question string `json:"question" jsonschema:"the customer question to answer"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to ground the answer in (default 6)"`
}

type AskOutput struct {
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
	Cached  bool           `json:"cached,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_help_center",
		Description: "Search the help center and return the most relevant passages with their article links",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_support",
		Description: "Answer a customer question using only help center content, with the sources it used",
	}, s.handleAsk)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	ctx = withTrace(ctx)
	results, err := s.ports.RAG.Sources(ctx, input.Query, kOption(input.Limit)...)
	if err != nil {
		s.logger.WithTrace(ctx).Error("search_help_center failed", "error", err)
		return nil, SearchOutput{}, err
	}
	out := toSourceOutputs(results)
	return nil, SearchOutput{Results: out, Count: len(out)}, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	ctx = withTrace(ctx)
	record, err := s.ports.RAG.Answer(ctx, input.Question, nil, kOption(input.K)...)
	if err != nil {
		s.logger.WithTrace(ctx).Error("ask_support failed", "error", err)
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{
		Answer:  record.Answer,
		Sources: toSourceOutputs(record.Context),
		Cached:  record.Cached,
	}, nil
}

func kOption(k int) []retriever.Option {
	if k == 0 {
		return nil
	}
	return []retriever.Option{retriever.WithK(k)}
}

func toSourceOutputs(results []commonModels.RetrievalResult) []SourceOutput {
	out := make([]SourceOutput, len(results))
	for i, r := range results {
		out[i] = SourceOutput{
			DocID:          r.Metadata.DocId,
			Title:          r.Metadata.Title,
			URL:            r.Metadata.URL,
			Content:        r.Content,
			RelevanceScore: r.RelevanceScore,
			ChunkIndex:     r.Metadata.ChunkIndex,
		}
	}
	return out
}

func withTrace(ctx context.Context) context.Context {
	if _, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, config.TRACE_ID_KEY, "mcp-"+utils.GetNewUUID())
}

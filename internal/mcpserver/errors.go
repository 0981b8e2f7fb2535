// Package mcpserver exposes help center retrieval and answering as MCP tools,
// so assistants can ground their replies in the same index the api uses.
package mcpserver

import "errors"

var ErrMissingRAGService = errors.New("mcpserver: rag service is required")

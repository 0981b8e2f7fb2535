package cli

import (
	"fmt"

	"github.com/akolanti/SupportRAG/internal/mcpserver"
	"github.com/spf13/cobra"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the help center tools over MCP",
	Long: `Starts a Model Context Protocol server exposing two tools:
  search_help_center  passages and links for a query
  ask_support         a grounded answer with its sources

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	s, err := getStack(cmd.Context())
	if err != nil {
		return err
	}
	server, err := mcpserver.NewServer(&mcpserver.Ports{RAG: s.Service})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}

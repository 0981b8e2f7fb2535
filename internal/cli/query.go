package cli

import (
	"encoding/json"
	"fmt"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/spf13/cobra"
)

var (
	queryK      int
	queryJSON   bool
	sourcesK    int
	sourcesJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the index",
	Long:  `Retrieves the closest help center passages and composes an answer grounded in them.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [question]",
	Short: "List the passages a question would be answered from",
	Args:  cobra.ExactArgs(1),
	RunE:  runSources,
}

func init() {
	queryCmd.Flags().IntVar(&queryK, "k", 0, "number of passages to retrieve (0 = config default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the answer record as JSON")
	sourcesCmd.Flags().IntVarP(&sourcesK, "limit", "n", 0, "maximum number of passages (0 = config default)")
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print the passages as JSON")
	rootCmd.AddCommand(queryCmd, sourcesCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := getStack(cmd.Context())
	if err != nil {
		return err
	}
	record, err := s.Service.Answer(cmd.Context(), args[0], nil, withK(queryK)...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryJSON {
		return printJSON(cmd, record)
	}

	cmd.Println(record.Answer)
	if len(record.Context) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		printResults(cmd, record.Context)
	}
	return nil
}

func runSources(cmd *cobra.Command, args []string) error {
	s, err := getStack(cmd.Context())
	if err != nil {
		return err
	}
	results, err := s.Service.Sources(cmd.Context(), args[0], withK(sourcesK)...)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if sourcesJSON {
		return printJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	printResults(cmd, results)
	return nil
}

func withK(k int) []retriever.Option {
	if k == 0 {
		return nil
	}
	return []retriever.Option{retriever.WithK(k)}
}

func printResults(cmd *cobra.Command, results []commonModels.RetrievalResult) {
	for i, r := range results {
		title := r.Metadata.Title
		if title == "" {
			title = r.Metadata.DocId
		}
		cmd.Printf("[%d] %s (%.3f)\n", i+1, title, r.RelevanceScore)
		if r.Metadata.URL != "" {
			cmd.Printf("    %s\n", r.Metadata.URL)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

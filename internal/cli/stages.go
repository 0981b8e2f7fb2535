package cli

import (
	"fmt"

	"github.com/akolanti/SupportRAG/internal/app"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/rag/chunker"
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch every help center article into articles.json",
	Args:  cobra.NoArgs,
	RunE:  runScrape,
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split articles.json into chunks.json",
	Args:  cobra.NoArgs,
	RunE:  runChunk,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed chunks.json into chunks_with_embeddings.json",
	Args:  cobra.NoArgs,
	RunE:  runEmbed,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Append chunks_with_embeddings.json to the vector index",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var ingestFromArticles bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run every stage: scrape, chunk, embed and index",
	Long: `Runs the whole ingestion pipeline. With --from-articles the help center is not
contacted and the existing articles.json is ingested instead.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFromArticles, "from-articles", false, "ingest the saved articles.json instead of scraping")
	rootCmd.AddCommand(scrapeCmd, chunkCmd, embedCmd, indexCmd, ingestCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	store := artifactStore()
	src, err := app.NewHelpCenter(cfg, store)
	if err != nil {
		return err
	}
	docs, err := src.FetchDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	if err := store.SaveArticles(docs); err != nil {
		return err
	}
	cmd.Printf("Saved %d articles to %s\n", len(docs), store.Dir())
	return nil
}

func runChunk(cmd *cobra.Command, _ []string) error {
	store := artifactStore()
	docs, err := store.LoadArticles()
	if err != nil {
		return fmt.Errorf("reading articles, run scrape first: %w", err)
	}
	c, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	chunks := c.Chunk(docs)
	if err := store.SaveChunks(chunks); err != nil {
		return err
	}
	cmd.Printf("Split %d articles into %d chunks\n", len(docs), len(chunks))
	return nil
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	store := artifactStore()
	chunks, err := store.LoadChunks()
	if err != nil {
		return fmt.Errorf("reading chunks, run chunk first: %w", err)
	}
	e, err := app.NewEmbedder(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	p, err := app.NewPipeline(cfg, c, e, nil, store)
	if err != nil {
		return err
	}
	embedded, err := p.Embed(cmd.Context(), chunks)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if err := store.SaveEmbedded(embedded); err != nil {
		return err
	}
	cmd.Printf("Embedded %d chunks with %s\n", len(embedded), e.ModelID())
	return nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	embedded, err := artifactStore().LoadEmbedded()
	if err != nil {
		return fmt.Errorf("reading embeddings, run embed first: %w", err)
	}
	s, err := getStack(cmd.Context())
	if err != nil {
		return err
	}
	res, err := s.Pipeline.Index(cmd.Context(), embedded)
	if err != nil {
		return fmt.Errorf("indexing failed after %d entries: %w", res.Indexed, err)
	}
	cmd.Printf("Indexed %d entries\n", res.Indexed)
	return nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	s, err := getStack(cmd.Context())
	if err != nil {
		return err
	}

	var docs []commonModels.Document
	if ingestFromArticles {
		docs, err = s.Artifacts.LoadArticles()
	} else {
		docs, err = s.HelpCenter.FetchDocuments(cmd.Context())
		if err == nil {
			err = s.Artifacts.SaveArticles(docs)
		}
	}
	if err != nil {
		return fmt.Errorf("loading articles: %w", err)
	}

	res, err := s.Pipeline.Run(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("ingestion stopped after %d entries: %w", res.Indexed, err)
	}
	cmd.Printf("Ingested %d articles as %d chunks\n", res.Documents, res.Chunks)
	return nil
}

// Package cli holds the ragctl commands. Each ingestion stage reads the artifact the
// previous stage wrote, so a failed run can resume from the last good stage.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/akolanti/SupportRAG/internal/app"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string

	cfg   *config.AppConfig
	stack *app.Stack
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Operate the help center RAG index",
	Long: `ragctl scrapes the help center, chunks and embeds articles, fills the vector
index and answers questions from it.

Stages write their output to the artifacts directory:
  scrape -> articles.json -> chunk -> chunks.json -> embed -> chunks_with_embeddings.json -> index`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the yaml config")
	rootCmd.SetOut(os.Stdout)
	cobra.OnFinalize(closeStack)
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger_i.InitTo(cmd.ErrOrStderr(), loaded.Log)
	cfg = loaded
	return nil
}

// getStack builds the full stack once per invocation.
func getStack(ctx context.Context) (*app.Stack, error) {
	if stack != nil {
		return stack, nil
	}
	s, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stack = s
	return stack, nil
}

func closeStack() {
	if stack == nil {
		return
	}
	_ = stack.Close()
	stack = nil
}

func artifactStore() *artifacts.Store {
	return artifacts.New(cfg.Artifacts.Dir)
}

package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
embedding:
  provider: fake
  dimension: 32
generation:
  provider: fake
index:
  backend: sqlite
  path: %s
artifacts:
  dir: %s
rag:
  min_relevance_score: -1
log:
  level: error
`

var articles = []commonModels.Document{
	{Id: "1", Title: "Referral Program", URL: "https://help/1", Body: "Invite a friend from the Rewards tab and both of you get a bonus."},
	{Id: "2", Title: "Closing your account", URL: "https://help/2", Body: "Contact support from the app to close your account."},
	{Id: "3", Title: "Card fees", URL: "https://help/3", Body: "There are no fees for card payments abroad."},
}

// setupWorkspace writes a fake provider config and returns its path and the artifacts dir.
func setupWorkspace(t *testing.T, withArticles bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(testConfig, filepath.Join(dir, "index", "helpcenter.db"), dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	if withArticles {
		require.NoError(t, artifacts.New(dir).SaveArticles(articles))
	}
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	queryK, queryJSON, sourcesK, sourcesJSON, ingestFromArticles, mcpPort = 0, false, 0, false, false, 0

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommandsAreRegistered(t *testing.T) {
	for _, name := range []string{"scrape", "chunk", "embed", "index", "ingest", "query", "sources", "mcp"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config.yaml", flag.DefValue)
}

func TestQueryRequiresExactlyOneArg(t *testing.T) {
	cfgPath, _ := setupWorkspace(t, false)
	_, err := run(t, "query", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestStagesResumeFromArtifacts(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, true)

	out, err := run(t, "chunk", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Split 3 articles into 3 chunks")
	assert.FileExists(t, filepath.Join(dir, artifacts.ChunksFile))

	out, err = run(t, "embed", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 3 chunks with fake/hash@32")

	embedded, err := artifacts.New(dir).LoadEmbedded()
	require.NoError(t, err)
	require.Len(t, embedded, 3)
	assert.Len(t, embedded[0].Embedding, 32)

	out, err = run(t, "index", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 entries")

	out, err = run(t, "sources", "--config", cfgPath, "--limit", "2", "how do I invite a friend")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "[2] ")
	assert.NotContains(t, out, "[3] ")
}

func TestChunkWithoutArticlesFails(t *testing.T) {
	cfgPath, _ := setupWorkspace(t, false)
	_, err := run(t, "chunk", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run scrape first")
}

func TestIngestThenQuery(t *testing.T) {
	cfgPath, _ := setupWorkspace(t, true)

	out, err := run(t, "ingest", "--config", cfgPath, "--from-articles")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 3 articles as 3 chunks")

	out, err = run(t, "query", "--config", cfgPath, "How do referrals work?")
	require.NoError(t, err)
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "https://help/")

	out, err = run(t, "sources", "--config", cfgPath, "--json", "card fees")
	require.NoError(t, err)
	assert.Contains(t, out, `"relevance_score"`)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"), 0o600))

	_, err := run(t, "chunk", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

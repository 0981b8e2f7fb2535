package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		BaseURL:   url,
		Locale:    "en-gb",
		RateLimit: 1000,
		Retries:   3,
		Backoff:   time.Millisecond,
	}
}

func helpCenter(t *testing.T, failArticleTimes int32) (*httptest.Server, *int32) {
	t.Helper()
	var articleCalls int32
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/en-gb/categories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"categories":[{"id":1,"name":"Account"}],"next_page":null}`)
	})
	mux.HandleFunc("/en-gb/categories/1/sections.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sections":[{"id":10,"name":"Rewards"}],"next_page":null}`)
	})
	mux.HandleFunc("/en-gb/sections/10/articles.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"articles":[{"id":101,"title":"Delivery"}],"next_page":null}`)
			return
		}
		fmt.Fprintf(w, `{"articles":[{"id":100,"title":"Referral Program"}],"next_page":"%s/en-gb/sections/10/articles.json?page=2"}`, srv.URL)
	})
	mux.HandleFunc("/en-gb/articles/100.json", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&articleCalls, 1) <= failArticleTimes {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"article":{"id":100,"title":"Referral Program",
			"body":"<h1>Refer   a friend</h1><p>Share your <b>code</b> &amp; earn £10.</p><script>track()</script>",
			"html_url":"https://help.example/articles/100","label_names":["referral"],
			"created_at":"2024-01-02T03:04:05Z","updated_at":"2024-02-02T03:04:05Z"}}`)
	})
	mux.HandleFunc("/en-gb/articles/101.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"article":{"id":101,"title":"Delivery","body":"<p>Two days.</p>",
			"html_url":"https://help.example/articles/101","created_at":"2024-01-02T03:04:05Z","updated_at":"2024-01-02T03:04:05Z"}}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &articleCalls
}

func TestFetchDocumentsTraversesAndPaginates(t *testing.T) {
	srv, calls := helpCenter(t, 2)
	client, err := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	rawDir := t.TempDir()

	docs, err := NewSource(client, artifacts.New(rawDir)).FetchDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	referral := docs[0]
	assert.Equal(t, "100", referral.Id)
	assert.Equal(t, "Referral Program", referral.Title)
	assert.Equal(t, "Refer a friend Share your code & earn £10.", referral.Body)
	assert.Contains(t, referral.HTMLBody, "<h1>")
	assert.Equal(t, "https://help.example/articles/100", referral.URL)
	assert.Equal(t, "Account", referral.Category.Name)
	assert.Equal(t, int64(10), referral.Section.Id)
	assert.Equal(t, []string{"referral"}, referral.Tags)
	assert.Equal(t, 2024, referral.CreatedAt.Year())
	assert.Equal(t, "101", docs[1].Id)

	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	_, err = os.Stat(filepath.Join(rawDir, artifacts.RawDir, "article_100.json"))
	assert.NoError(t, err)
}

func TestFetchDocumentsGivesUpAfterRetries(t *testing.T) {
	srv, calls := helpCenter(t, 100)
	client, err := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = NewSource(client, nil).FetchDocuments(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ragErrors.ErrSourceFetch)
	var fetchErr *ragErrors.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.URL, "articles/100.json")
	// first attempt plus three retries
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = NewSource(client, nil).FetchDocuments(context.Background())
	assert.ErrorIs(t, err, ragErrors.ErrSourceFetch)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNewValidates(t *testing.T) {
	_, err := New(config.SourceConfig{})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	_, err = New(config.SourceConfig{BaseURL: "http://x", RateLimit: 0})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"<p>Hello</p><p>world</p>", "Hello world"},
		{"<div>  a\n\n b </div>", "a b"},
		{"<style>p{}</style><p>x &lt; y</p>", "x < y"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanHTML(tt.in), tt.in)
	}
}

package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSearchResults(t *testing.T) {
	got := FormatSearchResults("go 1.22", []SearchHit{
		{Title: "Go 1.22 Release Notes", URL: "https://go.dev/doc/go1.22", Snippet: "Go 1.22 is a major release."},
		{Title: "Loopvar", URL: "https://go.dev/blog/loopvar-preview", Snippet: "Fixing for loops."},
	})
	want := "Web search results for \"go 1.22\":\n\n" +
		"1. Go 1.22 Release Notes\n   URL: https://go.dev/doc/go1.22\n   Snippet: Go 1.22 is a major release.\n\n" +
		"2. Loopvar\n   URL: https://go.dev/blog/loopvar-preview\n   Snippet: Fixing for loops.\n\n"
	assert.Equal(t, want, got)

	assert.Equal(t, "Web search results for \"nothing\":\n\nNo relevant results found.\n", FormatSearchResults("nothing", nil))
}

func TestGoogleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key-1", q.Get("key"))
		assert.Equal(t, "cse-1", q.Get("cx"))
		assert.Equal(t, "capital of France", q.Get("q"))
		assert.Equal(t, "3", q.Get("num"))
		w.Write([]byte(`{"items": [
			{"title": "Paris - Wikipedia", "link": "https://en.wikipedia.org/wiki/Paris", "snippet": "Paris is the capital of France."},
			{"title": "No plain snippet", "link": "https://example.com", "htmlSnippet": "<b>Bold</b>   text"}
		]}`))
	}))
	defer srv.Close()

	client := NewGoogleSearchClient("key-1", "cse-1", time.Second)
	client.baseURL = srv.URL

	result, err := client.Search(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	assert.Equal(t, "capital of France", result.Query)
	assert.Equal(t, 2, result.NumResults)
	assert.Contains(t, result.Results, "1. Paris - Wikipedia\n   URL: https://en.wikipedia.org/wiki/Paris\n")
	assert.Equal(t, "Bold text", result.Hits[1].Snippet)
}

func TestGoogleSearchErrors(t *testing.T) {
	_, err := NewGoogleSearchClient("", "cse", time.Second).Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewGoogleSearchClient("key", "", time.Second).Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	}))
	defer srv.Close()

	client := NewGoogleSearchClient("key", "cse", time.Second)
	client.baseURL = srv.URL
	_, err = client.Search(context.Background(), "q", 5)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.Status)
	assert.Contains(t, upstream.Body, "quota exceeded")
}

func TestGoogleSearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewGoogleSearchClient("key", "cse", 30*time.Millisecond)
	client.baseURL = srv.URL
	_, err := client.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrTimeout)
}

const duckDuckGoPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go Programming Language</a></h2>
  <a class="result__snippet" href="#">Go is an open   source programming language.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="https://pkg.go.dev/">Go Packages</a></h2>
  <a class="result__snippet" href="#">Discover packages.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="/relative">Skipped</a></h2>
</div>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="https://third.example/">Third</a></h2>
</div>
</body></html>`

func TestParseDuckDuckGoHTML(t *testing.T) {
	hits, err := parseDuckDuckGoHTML(duckDuckGoPage, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, SearchHit{Title: "The Go Programming Language", URL: "https://go.dev/", Snippet: "Go is an open source programming language."}, hits[0])
	assert.Equal(t, "https://pkg.go.dev/", hits[1].URL)

	all, err := parseDuckDuckGoHTML(duckDuckGoPage, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Third", all[2].Title)
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(duckDuckGoPage))
	}))
	defer srv.Close()

	client := NewDuckDuckGoClient(time.Second)
	client.baseURL = srv.URL
	result, err := client.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NumResults)
	assert.Contains(t, result.Results, "Web search results for \"golang\"")
}

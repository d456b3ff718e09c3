package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultGoogleSearchURL = "https://www.googleapis.com/customsearch/v1"
	defaultDuckDuckGoURL   = "https://html.duckduckgo.com/html/"
	duckDuckGoUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxSearchResults       = 10
	maxSearchBodyBytes     = 5 << 20
)

// SearchHit is one web result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResult is the web-search proxy response. Results is the text block handed to the model.
type SearchResult struct {
	Results    string      `json:"results"`
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	SearchTime float64     `json:"search_time"`
	Hits       []SearchHit `json:"hits,omitempty"`
}

type Searcher interface {
	Search(ctx context.Context, query string, numResults int) (*SearchResult, error)
}

// FormatSearchResults renders hits in the block format the model is prompted with.
func FormatSearchResults(query string, hits []SearchHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for \"%s\":\n\n", query)
	if len(hits) == 0 {
		b.WriteString("No relevant results found.\n")
		return b.String()
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h.Title)
		fmt.Fprintf(&b, "   URL: %s\n", h.URL)
		fmt.Fprintf(&b, "   Snippet: %s\n\n", h.Snippet)
	}
	return b.String()
}

func clampResults(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxSearchResults {
		return maxSearchResults
	}
	return n
}

func newSearchResult(query string, hits []SearchHit, start time.Time) *SearchResult {
	return &SearchResult{
		Results:    FormatSearchResults(query, hits),
		Query:      query,
		NumResults: len(hits),
		SearchTime: roundSeconds(time.Since(start)),
		Hits:       hits,
	}
}

// GoogleSearchClient queries the Custom Search JSON API.
type GoogleSearchClient struct {
	apiKey     string
	cseID      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewGoogleSearchClient(apiKey, cseID string, timeout time.Duration) *GoogleSearchClient {
	return &GoogleSearchClient{
		apiKey:     apiKey,
		cseID:      cseID,
		baseURL:    defaultGoogleSearchURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type googleSearchResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		HTMLSnippet string `json:"htmlSnippet"`
	} `json:"items"`
}

func (c *GoogleSearchClient) Search(ctx context.Context, query string, numResults int) (*SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("Google API key: %w", ErrNotConfigured)
	}
	if c.cseID == "" {
		return nil, fmt.Errorf("Google Custom Search Engine ID: %w", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(clampResults(numResults)))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := getBody(ctx, c.httpClient, "Web search", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var parsed googleSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		snippet := item.Snippet
		if snippet == "" && item.HTMLSnippet != "" {
			snippet = htmlToText(item.HTMLSnippet)
		}
		hits = append(hits, SearchHit{Title: item.Title, URL: item.Link, Snippet: snippet})
	}
	return newSearchResult(query, hits, start), nil
}

// DuckDuckGoClient scrapes the keyless HTML endpoint.
type DuckDuckGoClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewDuckDuckGoClient(timeout time.Duration) *DuckDuckGoClient {
	return &DuckDuckGoClient{baseURL: defaultDuckDuckGoURL, timeout: timeout, httpClient: &http.Client{}}
}

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, numResults int) (*SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	headers := http.Header{}
	headers.Set("User-Agent", duckDuckGoUserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.9")

	body, err := getBody(ctx, c.httpClient, "Web search", c.baseURL+"?q="+url.QueryEscape(query), headers)
	if err != nil {
		return nil, err
	}

	hits, err := parseDuckDuckGoHTML(string(body), clampResults(numResults))
	if err != nil {
		return nil, err
	}
	return newSearchResult(query, hits, start), nil
}

func parseDuckDuckGoHTML(html string, limit int) ([]SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var hits []SearchHit
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		href, _ := link.Attr("href")
		target := duckDuckGoTarget(href)
		title := strings.TrimSpace(link.Text())
		if title == "" || target == "" {
			return true
		}
		hits = append(hits, SearchHit{
			Title:   title,
			URL:     target,
			Snippet: strings.Join(strings.Fields(sel.Find(".result__snippet").First().Text()), " "),
		})
		return len(hits) < limit
	})
	return hits, nil
}

// duckDuckGoTarget unwraps //duckduckgo.com/l/?uddg=<url> redirects.
func duckDuckGoTarget(href string) string {
	if strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return parsed.Query().Get("uddg")
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// getBody performs a GET and returns the body, mapping non-2xx onto UpstreamError.
func getBody(ctx context.Context, client *http.Client, op, target string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("%s request: %w", strings.ToLower(op), err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodyBytes))
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

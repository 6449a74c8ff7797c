// In file: internal/tools/wikipedia.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const (
	defaultWikipediaLang    = "en"
	defaultWikipediaResults = 3
	wikipediaUserAgent      = "MathAssistant/1.0 (https://github.com/zeeshanml/math-assistant)"
)

// Article is one encyclopedia page returned for a query.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// WikipediaClient queries the MediaWiki action API for page summaries.
// A single generator=search request returns the top matches together with
// their plain-text intro extracts.
type WikipediaClient struct {
	endpoint   string
	maxResults int
	httpClient *http.Client
}

// NewWikipediaClient creates a client for the given language edition
// ("en", "de", ...). An empty language selects English.
func NewWikipediaClient(lang string) *WikipediaClient {
	if lang == "" {
		lang = defaultWikipediaLang
	}
	return NewWikipediaClientWithEndpoint(fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang))
}

// NewWikipediaClientWithEndpoint points the client at an explicit api.php
// URL, which is how tests substitute a local server.
func NewWikipediaClientWithEndpoint(endpoint string) *WikipediaClient {
	return &WikipediaClient{
		endpoint:   endpoint,
		maxResults: defaultWikipediaResults,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// wikipediaResponse mirrors the subset of the formatversion=2 payload we use.
type wikipediaResponse struct {
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Index   int    `json:"index"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns up to maxResults articles ranked by the search backend.
// An empty slice means the encyclopedia had nothing for the query.
func (w *WikipediaClient) Search(ctx context.Context, query string) ([]Article, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", strconv.Itoa(w.maxResults))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create wikipedia request: %w", err)
	}
	req.Header.Set("User-Agent", wikipediaUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call wikipedia: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("wikipedia returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse wikipedia response: %w", err)
	}

	pages := apiResp.Query.Pages
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	articles := make([]Article, 0, len(pages))
	for _, p := range pages {
		if p.Extract == "" {
			continue
		}
		articles = append(articles, Article{Title: p.Title, Summary: p.Extract})
	}
	return articles, nil
}

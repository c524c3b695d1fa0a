// Package search implements the ContextSearch port. Tavily is the only
// hosted provider; Disabled stands in when search is turned off or no key
// is configured.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// DefaultTavilyEndpoint is used when the config leaves the endpoint empty.
const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewTavilyClient builds a client; a nil httpClient uses a default with the
// shared HTTP timeout.
func NewTavilyClient(endpoint, apiKey string, maxResults int, httpClient *http.Client) *TavilyClient {
	if endpoint == "" {
		endpoint = DefaultTavilyEndpoint
	}
	if maxResults <= 0 {
		maxResults = domain.DefaultSearchMaxResults
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: domain.DefaultHTTPClientTimeout}
	}
	return &TavilyClient{endpoint: endpoint, apiKey: apiKey, maxResults: maxResults, httpClient: httpClient}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements ports.ContextSearch. Snippets keep the provider's
// ranking. Every failure wraps domain.ErrSearchUnavailable.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]domain.SearchSnippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, unavailable(errors.New("empty query"))
	}
	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  c.maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, unavailable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(fmt.Errorf("tavily search failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, unavailable(fmt.Errorf("tavily search error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, unavailable(fmt.Errorf("parse tavily response: %w", err))
	}

	snippets := make([]domain.SearchSnippet, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		snippets = append(snippets, domain.SearchSnippet{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
			Score:   r.Score,
		})
		if len(snippets) == c.maxResults {
			break
		}
	}
	return snippets, nil
}

// Disabled always reports search as unavailable.
type Disabled struct {
	Reason string
}

// Search implements ports.ContextSearch.
func (d Disabled) Search(context.Context, string) ([]domain.SearchSnippet, error) {
	reason := d.Reason
	if reason == "" {
		reason = "search disabled"
	}
	return nil, unavailable(errors.New(reason))
}

// ForConfig picks the adapter for the search section of the config.
func ForConfig(cfg domain.Config, lookupEnv func(string) string) ports.ContextSearch {
	if lookupEnv == nil {
		lookupEnv = os.Getenv
	}
	settings := cfg.Search
	if !settings.Enabled {
		return Disabled{Reason: "search disabled in config"}
	}
	if provider := strings.ToLower(settings.Provider); provider != "" && provider != "tavily" {
		return Disabled{Reason: fmt.Sprintf("unknown search provider %q", settings.Provider)}
	}
	envVar := settings.AuthEnvVar
	if envVar == "" {
		envVar = "TAVILY_API_KEY"
	}
	key := lookupEnv(envVar)
	if key == "" {
		return Disabled{Reason: envVar + " not set"}
	}
	return NewTavilyClient(settings.Endpoint, key, cfg.GetSearchMaxResults(), nil)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
}

var (
	_ ports.ContextSearch = (*TavilyClient)(nil)
	_ ports.ContextSearch = Disabled{}
)

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rosescout/rosescout/orchestrate"
)

// WebSearchArgs are the named arguments for web-search.
type WebSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query"`
}

// WebSearchResult bundles the answer and result list for one query.
type WebSearchResult struct {
	Query      string                `json:"query"`
	Answer     string                `json:"answer"`
	Results    []WebSearchResultItem `json:"results"`
	SearchTime float64               `json:"search_time"`
}

// WebSearchResultItem is one search hit.
type WebSearchResultItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

type searchClient struct {
	key     string
	baseURL string
	caller  *caller
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Answer       string                `json:"answer"`
	Results      []WebSearchResultItem `json:"results"`
	ResponseTime float64               `json:"response_time"`
}

func (s *searchClient) search(ctx context.Context, query string) (WebSearchResult, error) {
	if query == "" {
		return WebSearchResult{}, errors.New("tavily: query is required")
	}
	payload, err := json.Marshal(tavilyRequest{
		APIKey:      s.key,
		Query:       query,
		MaxResults:  20,
		SearchDepth: "advanced",
	})
	if err != nil {
		return WebSearchResult{}, err
	}

	body, status, err := s.caller.doJSON(ctx, http.MethodPost, s.baseURL+"/search", nil, payload)
	if err != nil {
		return WebSearchResult{}, err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return WebSearchResult{}, fmt.Errorf("%w: tavily: status %d", ErrAuthMissing, status)
	case status != http.StatusOK:
		return WebSearchResult{}, fmt.Errorf("%w: tavily: status %d: %s", ErrUpstream, status, string(body))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return WebSearchResult{}, fmt.Errorf("%w: tavily: %v", ErrUpstream, err)
	}
	return WebSearchResult{
		Query:      query,
		Answer:     parsed.Answer,
		Results:    parsed.Results,
		SearchTime: parsed.ResponseTime,
	}, nil
}

type webSearchAdapter struct {
	clients *Clients
}

func (a webSearchAdapter) Definition() orchestrate.Definition {
	return orchestrate.Definition{
		Name:        CapabilityWebSearch,
		Description: "Search the web and return ranked results with snippets.",
		InputSchema: schemaFor(&WebSearchArgs{}),
	}
}

func (a webSearchAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args WebSearchArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	client, err := a.clients.searchTools()
	if err != nil {
		return nil, err
	}
	result, err := client.search(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rosescout/rosescout/orchestrate"
)

// ScreeningArgs are the named arguments for screening-list-search.
// Name matching is a substring search server-side, so distinctive proper
// nouns work far better than generic terms.
type ScreeningArgs struct {
	Name      string `json:"name,omitempty" jsonschema:"description=Entity or person name to search for (substring match; use distinctive proper nouns)"`
	Countries string `json:"countries,omitempty" jsonschema:"description=ISO alpha-2 country code filter (e.g. 'CN' or 'RU')"`
	City      string `json:"city,omitempty" jsonschema:"description=City filter"`
	State     string `json:"state,omitempty" jsonschema:"description=State or province filter"`
}

type screeningClient struct {
	key     string
	baseURL string
	caller  *caller
}

// search returns the raw consolidated screening list response: the payload
// shape (total_returned, results with source list and listing reason) is
// passed through to the model unmodified.
func (s *screeningClient) search(ctx context.Context, args ScreeningArgs) (json.RawMessage, error) {
	query := url.Values{"subscription-key": {s.key}}
	if args.Name != "" {
		query.Set("name", args.Name)
	}
	if args.Countries != "" {
		query.Set("countries", args.Countries)
	}
	if args.City != "" {
		query.Set("city", args.City)
	}
	if args.State != "" {
		query.Set("state", args.State)
	}

	body, status, err := s.caller.doJSON(ctx, http.MethodGet, s.baseURL+"/search?"+query.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: screening-list: status %d", ErrAuthMissing, status)
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: screening-list: status %d: %s", ErrUpstream, status, string(body))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: screening-list: non-JSON response", ErrUpstream)
	}
	return json.RawMessage(body), nil
}

type screeningAdapter struct {
	clients *Clients
}

func (a screeningAdapter) Definition() orchestrate.Definition {
	return orchestrate.Definition{
		Name: CapabilityScreening,
		Description: "Search the US consolidated screening list (SDN, Entity List, Denied Persons and " +
			"other sanctions lists) for restricted entities and individuals.",
		InputSchema: schemaFor(&ScreeningArgs{}),
	}
}

func (a screeningAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args ScreeningArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	client, err := a.clients.screeningTools()
	if err != nil {
		return nil, err
	}
	return client.search(ctx, args)
}

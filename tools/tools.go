// Package tools wraps the external capabilities the generation step may
// invoke: geocoding, distance, web search, sanctions screening and
// researcher profiles. Each capability is exposed as an orchestrate.Adapter
// with a uniform named-JSON calling convention.
package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/rosescout/rosescout/orchestrate"
)

// Capability identifiers exposed to the model.
const (
	CapabilityGeocode    = "get-coordinates"
	CapabilityDistance   = "calculate-distance"
	CapabilityWebSearch  = "web-search"
	CapabilityScreening  = "screening-list-search"
	CapabilityResearcher = "researcher-profile"
)

// Config holds credentials and endpoints for every upstream API.
// Base URLs default to the public endpoints and exist for tests.
type Config struct {
	MapsAPIKey      string
	TavilyAPIKey    string
	ScreeningAPIKey string
	OrcidToken      string

	MapsBaseURL      string
	TavilyBaseURL    string
	ScreeningBaseURL string
	OrcidBaseURL     string

	HTTPClient *http.Client
}

// ConfigFromEnv reads upstream credentials from the environment.
func ConfigFromEnv() Config {
	return Config{
		MapsAPIKey:      envTrimmed("GOOGLE_MAPS_API_KEY"),
		TavilyAPIKey:    envTrimmed("TAVILY_SEARCH_API_KEY"),
		ScreeningAPIKey: envTrimmed("CONSOLIDATED_SCREENING_LIST_API_KEY"),
		OrcidToken:      envTrimmed("ORCID_API_KEY"),
	}
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Clients owns one lazily constructed client per upstream API. The same
// Clients value is shared read-only across concurrently running requests;
// sync.Once guarantees exactly one instance per upstream regardless of
// construction races. A missing credential is reported on first use, on
// every use, rather than at process start.
type Clients struct {
	cfg Config

	mapsOnce sync.Once
	maps     *mapsClient
	mapsErr  error

	searchOnce sync.Once
	search     *searchClient
	searchErr  error

	screeningOnce sync.Once
	screening     *screeningClient
	screeningErr  error

	orcidOnce sync.Once
	orcid     *orcidClient
}

// NewClients creates the shared upstream client context.
func NewClients(cfg Config) *Clients {
	return &Clients{cfg: cfg}
}

// Adapters returns every capability adapter backed by this context.
func (c *Clients) Adapters() []orchestrate.Adapter {
	return []orchestrate.Adapter{
		geocodeAdapter{clients: c},
		distanceAdapter{clients: c},
		webSearchAdapter{clients: c},
		screeningAdapter{clients: c},
		researcherAdapter{clients: c},
	}
}

func (c *Clients) mapsTools() (*mapsClient, error) {
	c.mapsOnce.Do(func() {
		if c.cfg.MapsAPIKey == "" {
			c.mapsErr = fmt.Errorf("%w: GOOGLE_MAPS_API_KEY", ErrAuthMissing)
			return
		}
		base := c.cfg.MapsBaseURL
		if base == "" {
			base = "https://maps.googleapis.com"
		}
		c.maps = &mapsClient{
			key:     c.cfg.MapsAPIKey,
			baseURL: strings.TrimRight(base, "/"),
			caller:  newCaller("google-maps", c.cfg.HTTPClient),
		}
	})
	return c.maps, c.mapsErr
}

func (c *Clients) searchTools() (*searchClient, error) {
	c.searchOnce.Do(func() {
		if c.cfg.TavilyAPIKey == "" {
			c.searchErr = fmt.Errorf("%w: TAVILY_SEARCH_API_KEY", ErrAuthMissing)
			return
		}
		base := c.cfg.TavilyBaseURL
		if base == "" {
			base = "https://api.tavily.com"
		}
		c.search = &searchClient{
			key:     c.cfg.TavilyAPIKey,
			baseURL: strings.TrimRight(base, "/"),
			caller:  newCaller("tavily", c.cfg.HTTPClient),
		}
	})
	return c.search, c.searchErr
}

func (c *Clients) screeningTools() (*screeningClient, error) {
	c.screeningOnce.Do(func() {
		if c.cfg.ScreeningAPIKey == "" {
			c.screeningErr = fmt.Errorf("%w: CONSOLIDATED_SCREENING_LIST_API_KEY", ErrAuthMissing)
			return
		}
		base := c.cfg.ScreeningBaseURL
		if base == "" {
			base = "https://data.trade.gov/consolidated_screening_list/v1"
		}
		c.screening = &screeningClient{
			key:     c.cfg.ScreeningAPIKey,
			baseURL: strings.TrimRight(base, "/"),
			caller:  newCaller("screening-list", c.cfg.HTTPClient),
		}
	})
	return c.screening, c.screeningErr
}

// orcidTools never fails: the ORCID public API works without a token.
func (c *Clients) orcidTools() *orcidClient {
	c.orcidOnce.Do(func() {
		base := c.cfg.OrcidBaseURL
		if base == "" {
			base = "https://pub.orcid.org/v3.0"
		}
		c.orcid = &orcidClient{
			token:   c.cfg.OrcidToken,
			baseURL: strings.TrimRight(base, "/"),
			caller:  newCaller("orcid", c.cfg.HTTPClient),
		}
	})
	return c.orcid
}

// schemaFor derives a self-contained JSON schema from an args struct,
// honoring json and jsonschema tags.
func schemaFor(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

func decodeArgs(input json.RawMessage, out any) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, out); err != nil {
		return fmt.Errorf("tools: decode arguments: %w", err)
	}
	return nil
}

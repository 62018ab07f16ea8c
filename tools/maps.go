package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rosescout/rosescout/orchestrate"
)

// GeocodeArgs are the named arguments for get-coordinates.
type GeocodeArgs struct {
	Address string `json:"address" jsonschema:"required,description=The address to geocode (e.g. '1600 Amphitheatre Parkway, Mountain View, CA')"`
}

// GeocodeResult is the structured geocoding output.
type GeocodeResult struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
	Address          string  `json:"address"`
}

// DistanceArgs are the named arguments for calculate-distance.
type DistanceArgs struct {
	Origin      string `json:"origin" jsonschema:"required,description=Starting address"`
	Destination string `json:"destination" jsonschema:"required,description=Destination address"`
}

// DistanceResult is the structured distance output, metric units.
type DistanceResult struct {
	OriginAddress      string  `json:"origin_address"`
	DestinationAddress string  `json:"destination_address"`
	DistanceKm         float64 `json:"distance_km"`
	DistanceText       string  `json:"distance_text"`
	Duration           string  `json:"duration"`
	DurationSeconds    int     `json:"duration_seconds"`
}

type mapsClient struct {
	key     string
	baseURL string
	caller  *caller
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (m *mapsClient) geocode(ctx context.Context, address string) (GeocodeResult, error) {
	if address == "" {
		return GeocodeResult{}, errors.New("google-maps: address is required")
	}
	query := url.Values{"address": {address}, "key": {m.key}}
	endpoint := m.baseURL + "/maps/api/geocode/json?" + query.Encode()

	body, status, err := m.caller.doJSON(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return GeocodeResult{}, err
	}
	if status != http.StatusOK {
		return GeocodeResult{}, fmt.Errorf("%w: google-maps: status %d", ErrUpstream, status)
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GeocodeResult{}, fmt.Errorf("%w: google-maps: %v", ErrUpstream, err)
	}
	switch parsed.Status {
	case "OK":
	case "ZERO_RESULTS":
		return GeocodeResult{}, fmt.Errorf("%w: google-maps: no results for %q", ErrNoResult, address)
	default:
		return GeocodeResult{}, fmt.Errorf("%w: google-maps: %s %s", ErrUpstream, parsed.Status, parsed.ErrorMessage)
	}
	if len(parsed.Results) == 0 {
		return GeocodeResult{}, fmt.Errorf("%w: google-maps: no results for %q", ErrNoResult, address)
	}

	first := parsed.Results[0]
	return GeocodeResult{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
		Address:          address,
	}, nil
}

type distanceResponse struct {
	Status               string   `json:"status"`
	ErrorMessage         string   `json:"error_message"`
	OriginAddresses      []string `json:"origin_addresses"`
	DestinationAddresses []string `json:"destination_addresses"`
	Rows                 []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (m *mapsClient) distance(ctx context.Context, origin, destination string) (DistanceResult, error) {
	if origin == "" || destination == "" {
		return DistanceResult{}, errors.New("google-maps: origin and destination are required")
	}
	query := url.Values{
		"origins":      {origin},
		"destinations": {destination},
		"units":        {"metric"},
		"key":          {m.key},
	}
	endpoint := m.baseURL + "/maps/api/distancematrix/json?" + query.Encode()

	body, status, err := m.caller.doJSON(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return DistanceResult{}, err
	}
	if status != http.StatusOK {
		return DistanceResult{}, fmt.Errorf("%w: google-maps: status %d", ErrUpstream, status)
	}

	var parsed distanceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DistanceResult{}, fmt.Errorf("%w: google-maps: %v", ErrUpstream, err)
	}
	if parsed.Status != "OK" {
		return DistanceResult{}, fmt.Errorf("%w: google-maps: %s %s", ErrUpstream, parsed.Status, parsed.ErrorMessage)
	}
	if len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 || parsed.Rows[0].Elements[0].Status != "OK" {
		return DistanceResult{}, fmt.Errorf("%w: google-maps: no route between %q and %q", ErrNoResult, origin, destination)
	}

	element := parsed.Rows[0].Elements[0]
	result := DistanceResult{
		DistanceKm:      float64(element.Distance.Value) / 1000,
		DistanceText:    element.Distance.Text,
		Duration:        element.Duration.Text,
		DurationSeconds: element.Duration.Value,
	}
	if len(parsed.OriginAddresses) > 0 {
		result.OriginAddress = parsed.OriginAddresses[0]
	}
	if len(parsed.DestinationAddresses) > 0 {
		result.DestinationAddress = parsed.DestinationAddresses[0]
	}
	return result, nil
}

type geocodeAdapter struct {
	clients *Clients
}

func (a geocodeAdapter) Definition() orchestrate.Definition {
	return orchestrate.Definition{
		Name:        CapabilityGeocode,
		Description: "Get latitude and longitude coordinates for a street address.",
		InputSchema: schemaFor(&GeocodeArgs{}),
	}
}

func (a geocodeAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args GeocodeArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	client, err := a.clients.mapsTools()
	if err != nil {
		return nil, err
	}
	result, err := client.geocode(ctx, args.Address)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type distanceAdapter struct {
	clients *Clients
}

func (a distanceAdapter) Definition() orchestrate.Definition {
	return orchestrate.Definition{
		Name:        CapabilityDistance,
		Description: "Calculate the driving distance in kilometers between two addresses.",
		InputSchema: schemaFor(&DistanceArgs{}),
	}
}

func (a distanceAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args DistanceArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	client, err := a.clients.mapsTools()
	if err != nil {
		return nil, err
	}
	result, err := client.distance(ctx, args.Origin, args.Destination)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

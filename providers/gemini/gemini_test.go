package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/rosescout/rosescout/orchestrate"
)

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Model: "gemini-2.0-flash"}); err == nil {
		t.Fatalf("expected error without APIKey or Project")
	}
}

func TestEndpointSelection(t *testing.T) {
	keyed, err := New(Config{APIKey: "key", Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := keyed.endpoint("gemini-2.0-flash"); !strings.Contains(got, "generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected keyed endpoint %q", got)
	}

	vertex, err := New(Config{Project: "proj", Location: "europe-west1", Model: "gemini-2.0-flash", TokenSource: staticToken{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := vertex.endpoint("gemini-2.0-flash"); !strings.Contains(got, "/projects/proj/locations/europe-west1/publishers/google/models/gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected vertex endpoint %q", got)
	}
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, hasTools := req["tools"]; hasTools {
			t.Errorf("tools sent without adapters")
		}
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Napoleon was born in 1769."}]},
				"finishReason": "STOP",
				"groundingMetadata": {"groundingChunks": [{"web": {"title": "wikipedia.org", "uri": "https://en.wikipedia.org/wiki/Napoleon"}}]}
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
		}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := client.Generate(context.Background(), orchestrate.GenerateRequest{
		Prompt: "When was Napoleon born?",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text != "Napoleon was born in 1769." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if len(result.Sources) != 1 || result.Sources[0].URI != "https://en.wikipedia.org/wiki/Napoleon" {
		t.Fatalf("unexpected sources %+v", result.Sources)
	}
	if result.Usage.TotalTokens != 20 {
		t.Fatalf("unexpected usage %+v", result.Usage)
	}
}

func TestGenerateFunctionCallLoop(t *testing.T) {
	var turns int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []content `json:"contents"`
			Tools    []tool    `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		turns++
		switch turns {
		case 1:
			if len(req.Tools) != 1 || req.Tools[0].FunctionDeclarations[0].Name != "get-coordinates" {
				t.Errorf("function declarations missing: %+v", req.Tools)
			}
			w.Write([]byte(`{
				"candidates": [{"content": {"role": "model", "parts": [
					{"functionCall": {"name": "get-coordinates", "args": {"address": "Ajaccio, Corsica"}}}
				]}, "finishReason": "STOP"}],
				"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
			}`))
		default:
			last := req.Contents[len(req.Contents)-1]
			if last.Role != "user" || last.Parts[0].FunctionResponse == nil {
				t.Errorf("expected function response turn, got %+v", last)
			}
			if last.Parts[0].FunctionResponse.Response["result"] == nil {
				t.Errorf("function response payload missing: %+v", last.Parts[0].FunctionResponse)
			}
			w.Write([]byte(`{
				"candidates": [{"content": {"role": "model", "parts": [{"text": "Ajaccio is at 41.92, 8.73."}]}, "finishReason": "STOP"}],
				"usageMetadata": {"promptTokenCount": 30, "candidatesTokenCount": 9, "totalTokenCount": 39}
			}`))
		}
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	geocode := orchestrate.NewAdapter(orchestrate.Definition{
		Name:        "get-coordinates",
		Description: "Geocode an address.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"address":{"type":"string"}},"required":["address"]}`),
	}, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var args struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, err
		}
		if args.Address != "Ajaccio, Corsica" {
			t.Errorf("unexpected address %q", args.Address)
		}
		return json.RawMessage(`{"latitude": 41.92, "longitude": 8.73}`), nil
	})

	result, err := client.Generate(context.Background(), orchestrate.GenerateRequest{
		Prompt:   "Where was Napoleon born?",
		Adapters: []orchestrate.Adapter{geocode},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if turns != 2 {
		t.Fatalf("expected 2 model turns, got %d", turns)
	}
	if result.Text != "Ajaccio is at 41.92, 8.73." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Usage.TotalTokens != 54 {
		t.Fatalf("usage should accumulate across turns, got %+v", result.Usage)
	}
}

func TestGenerateToolTurnLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "web-search", "args": {"query": "again"}}}
			]}}],
			"usageMetadata": {}
		}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL, MaxToolTurns: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	search := orchestrate.NewAdapter(orchestrate.Definition{Name: "web-search"}, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"results": []}`), nil
	})

	_, err = client.Generate(context.Background(), orchestrate.GenerateRequest{
		Prompt:   "loop forever",
		Adapters: []orchestrate.Adapter{search},
	})
	if err == nil || !strings.Contains(err.Error(), "tool turn limit") {
		t.Fatalf("expected tool turn limit error, got %v", err)
	}
}

func TestGenerateAdapterErrorReportedToModel(t *testing.T) {
	var sawError bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []content `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		last := req.Contents[len(req.Contents)-1]
		if last.Parts[0].FunctionResponse != nil {
			if _, ok := last.Parts[0].FunctionResponse.Response["error"]; ok {
				sawError = true
			}
			w.Write([]byte(`{
				"candidates": [{"content": {"role": "model", "parts": [{"text": "The lookup failed."}]}}],
				"usageMetadata": {}
			}`))
			return
		}
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "screening-list-search", "args": {"name": "x"}}}
			]}}],
			"usageMetadata": {}
		}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	screening := orchestrate.NewAdapter(orchestrate.Definition{Name: "screening-list-search"}, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, context.DeadlineExceeded
	})

	result, err := client.Generate(context.Background(), orchestrate.GenerateRequest{
		Prompt:   "screen x",
		Adapters: []orchestrate.Adapter{screening},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !sawError {
		t.Fatalf("adapter error was not reported to the model")
	}
	if result.Text != "The lookup failed." {
		t.Fatalf("unexpected text %q", result.Text)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = client.Generate(context.Background(), orchestrate.GenerateRequest{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEnsureSchemaStripsUnsupportedKeywords(t *testing.T) {
	schema := json.RawMessage(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object","additionalProperties":false,"properties":{"query":{"type":"string"}}}`)
	parsed := ensureSchema(schema)
	if _, ok := parsed["$schema"]; ok {
		t.Fatalf("$schema not stripped")
	}
	if _, ok := parsed["additionalProperties"]; ok {
		t.Fatalf("additionalProperties not stripped")
	}
	if parsed["type"] != "object" {
		t.Fatalf("schema content lost: %v", parsed)
	}
}

type staticToken struct{}

func (staticToken) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "static"}, nil
}

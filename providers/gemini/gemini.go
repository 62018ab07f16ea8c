// Package gemini implements the generation contract against the Gemini
// REST API. It supports two authentication modes: an API key against the
// Generative Language endpoint, or application default credentials against
// Vertex AI.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rosescout/rosescout/orchestrate"
)

// Config controls a Gemini client. Exactly one of APIKey or Project is
// required: APIKey selects the Generative Language endpoint, Project the
// Vertex AI endpoint with default credentials.
type Config struct {
	APIKey       string
	Project      string
	Location     string
	Model        string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	MaxToolTurns int
	HTTPClient   *http.Client
	TokenSource  oauth2.TokenSource
}

// Client calls the Gemini generateContent REST API.
type Client struct {
	apiKey       string
	project      string
	location     string
	model        string
	baseURL      string
	temperature  float64
	maxTokens    int
	maxToolTurns int
	client       *http.Client
	cred         oauth2.TokenSource
}

// New constructs a Gemini client from config.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	project := strings.TrimSpace(cfg.Project)
	if apiKey == "" && project == "" {
		return nil, errors.New("gemini: either APIKey or Project is required")
	}

	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		if apiKey != "" {
			base = "https://generativelanguage.googleapis.com/v1beta"
		} else {
			base = "https://aiplatform.googleapis.com/v1"
		}
	}

	ts := cfg.TokenSource
	if apiKey == "" && ts == nil {
		var err error
		ts, err = google.DefaultTokenSource(context.Background(), "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("gemini adc: %w", err)
		}
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 65536
	}

	maxToolTurns := cfg.MaxToolTurns
	if maxToolTurns <= 0 {
		maxToolTurns = 8
	}

	return &Client{
		apiKey:       apiKey,
		project:      project,
		location:     location,
		model:        strings.TrimSpace(cfg.Model),
		baseURL:      strings.TrimRight(base, "/"),
		temperature:  temp,
		maxTokens:    maxTokens,
		maxToolTurns: maxToolTurns,
		client:       client,
		cred:         ts,
	}, nil
}

// NewFromEnv builds a Gemini client from environment variables.
func NewFromEnv() (*Client, error) {
	return New(ConfigFromEnv())
}

// ConfigFromEnv reads client settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Project:  strings.TrimSpace(os.Getenv("VERTEX_PROJECT")),
		Location: strings.TrimSpace(os.Getenv("VERTEX_LOCATION")),
		Model:    strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		BaseURL:  strings.TrimSpace(os.Getenv("GEMINI_API_BASE")),
	}
	if temp := strings.TrimSpace(os.Getenv("GEMINI_TEMPERATURE")); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			cfg.Temperature = v
		}
	}
	if max := strings.TrimSpace(os.Getenv("GEMINI_MAX_TOKENS")); max != "" {
		if v, err := strconv.Atoi(max); err == nil {
			cfg.MaxTokens = v
		}
	}
	return cfg
}

// Generate runs the compiled prompt through Gemini, resolving any function
// calls against the request's adapters until the model produces text or the
// tool-turn limit is reached.
func (c *Client) Generate(ctx context.Context, req orchestrate.GenerateRequest) (orchestrate.GenerateResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return orchestrate.GenerateResult{}, errors.New("gemini: model is required")
	}

	adapters := make(map[string]orchestrate.Adapter, len(req.Adapters))
	declarations := make([]functionDeclaration, 0, len(req.Adapters))
	for _, adapter := range req.Adapters {
		def := adapter.Definition()
		adapters[def.Name] = adapter
		declarations = append(declarations, functionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  ensureSchema(def.InputSchema),
		})
	}

	contents := []content{{
		Role:  "user",
		Parts: []part{{Text: req.Prompt}},
	}}

	result := orchestrate.GenerateResult{Usage: &orchestrate.Usage{}}
	for turn := 0; ; turn++ {
		parsed, err := c.generateContent(ctx, model, contents, declarations)
		if err != nil {
			return orchestrate.GenerateResult{}, err
		}
		if len(parsed.Candidates) == 0 {
			return orchestrate.GenerateResult{}, errors.New("gemini: empty response")
		}
		candidate := parsed.Candidates[0]

		result.Usage.InputTokens += parsed.UsageMetadata.PromptTokenCount
		result.Usage.OutputTokens += parsed.UsageMetadata.CandidatesTokenCount
		result.Usage.TotalTokens += parsed.UsageMetadata.TotalTokenCount
		result.Sources = append(result.Sources, groundingSources(candidate.GroundingMetadata)...)

		calls := functionCalls(candidate.Content.Parts)
		if len(calls) == 0 {
			text := collectText(candidate.Content.Parts)
			if text == "" {
				return orchestrate.GenerateResult{}, fmt.Errorf("gemini: no text in response (finish reason %q)", candidate.FinishReason)
			}
			result.Text = text
			return result, nil
		}
		if turn >= c.maxToolTurns {
			return orchestrate.GenerateResult{}, fmt.Errorf("gemini: tool turn limit (%d) exceeded", c.maxToolTurns)
		}

		contents = append(contents, content{Role: "model", Parts: candidate.Content.Parts})
		responses := make([]part, 0, len(calls))
		for _, call := range calls {
			responses = append(responses, part{
				FunctionResponse: &functionResponse{
					Name:     call.Name,
					Response: c.invoke(ctx, adapters, call),
				},
			})
		}
		contents = append(contents, content{Role: "user", Parts: responses})
	}
}

// invoke runs one adapter call. Failures are reported back to the model as
// an error payload rather than aborting the whole generation: the model can
// usually work around a single failed lookup.
func (c *Client) invoke(ctx context.Context, adapters map[string]orchestrate.Adapter, call *functionCall) map[string]any {
	adapter, ok := adapters[call.Name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown function %q", call.Name)}
	}
	args, err := json.Marshal(call.Args)
	if err != nil {
		args = []byte("{}")
	}
	output, err := adapter.Invoke(ctx, args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if len(output) == 0 {
		return map[string]any{"result": nil}
	}
	var payload any
	if err := json.Unmarshal(output, &payload); err != nil {
		return map[string]any{"result": string(output)}
	}
	return map[string]any{"result": payload}
}

func (c *Client) generateContent(ctx context.Context, model string, contents []content, declarations []functionDeclaration) (*generateResponse, error) {
	request := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if len(declarations) > 0 {
		request.Tools = []tool{{FunctionDeclarations: declarations}}
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(model), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	} else {
		token, err := c.cred.Token()
		if err != nil {
			return nil, fmt.Errorf("gemini token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *Client) endpoint(model string) string {
	if c.apiKey != "" {
		return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	}
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent", c.baseURL, c.project, c.location, model)
}

func readErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "<unreadable body>"
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return "<empty body>"
	}
	if len(body) > 1200 {
		return body[:1200] + "... (truncated)"
	}
	return body
}

func functionCalls(parts []part) []*functionCall {
	var calls []*functionCall
	for _, p := range parts {
		if p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}

func collectText(parts []part) string {
	var text strings.Builder
	for _, p := range parts {
		text.WriteString(p.Text)
	}
	return strings.TrimSpace(text.String())
}

func groundingSources(meta *groundingMetadata) []orchestrate.Source {
	if meta == nil {
		return nil
	}
	sources := make([]orchestrate.Source, 0, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, orchestrate.Source{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return sources
}

func ensureSchema(schema json.RawMessage) map[string]any {
	fallback := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if len(schema) == 0 {
		return fallback
	}
	var parsed map[string]any
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return fallback
	}
	// Gemini rejects schema keywords outside its subset.
	delete(parsed, "$schema")
	delete(parsed, "additionalProperties")
	return parsed
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	Tools            []tool           `json:"tools,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content           content            `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *webChunk `json:"web,omitempty"`
}

type webChunk struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

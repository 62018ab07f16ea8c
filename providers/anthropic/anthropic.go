// Package anthropic implements the generation contract against the
// Anthropic Messages API, resolving tool use internally before returning
// the final text.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rosescout/rosescout/orchestrate"
)

// Config controls an Anthropic client.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	MaxTokens    int
	MaxToolTurns int
	Temperature  *float64
	HTTPClient   *http.Client
}

// Client calls the Anthropic Messages API.
type Client struct {
	client       anthropic.Client
	model        string
	maxTokens    int
	maxToolTurns int
	temperature  *float64
}

// New constructs an Anthropic client from config.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	maxToolTurns := cfg.MaxToolTurns
	if maxToolTurns <= 0 {
		maxToolTurns = 8
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client:       anthropic.NewClient(opts...),
		model:        strings.TrimSpace(cfg.Model),
		maxTokens:    maxTokens,
		maxToolTurns: maxToolTurns,
		temperature:  cfg.Temperature,
	}, nil
}

// NewFromEnv builds an Anthropic client from environment variables.
func NewFromEnv() (*Client, error) {
	return New(ConfigFromEnv())
}

// ConfigFromEnv reads client settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:  envTrimmed("ANTHROPIC_API_KEY"),
		Model:   envTrimmed("ANTHROPIC_MODEL"),
		BaseURL: envTrimmed("ANTHROPIC_BASE_URL"),
	}
	if v := envTrimmed("ANTHROPIC_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := envTrimmed("ANTHROPIC_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	return cfg
}

// Generate runs the compiled prompt through the Messages API, resolving
// tool_use blocks against the request's adapters until the model stops.
func (c *Client) Generate(ctx context.Context, req orchestrate.GenerateRequest) (orchestrate.GenerateResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return orchestrate.GenerateResult{}, errors.New("anthropic: model is required")
	}

	adapters := make(map[string]orchestrate.Adapter, len(req.Adapters))
	for _, adapter := range req.Adapters {
		adapters[adapter.Definition().Name] = adapter
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}

	result := orchestrate.GenerateResult{Usage: &orchestrate.Usage{}}
	for turn := 0; ; turn++ {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(c.maxTokens),
			Messages:  messages,
		}
		if len(req.Adapters) > 0 {
			params.Tools = toolParams(req.Adapters)
		}
		if c.temperature != nil {
			params.Temperature = anthropic.Float(*c.temperature)
		}

		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return orchestrate.GenerateResult{}, fmt.Errorf("anthropic: %w", err)
		}

		result.Usage.InputTokens += int(msg.Usage.InputTokens)
		result.Usage.OutputTokens += int(msg.Usage.OutputTokens)
		result.Usage.TotalTokens += int(msg.Usage.InputTokens + msg.Usage.OutputTokens)

		text, uses := parseResponse(msg)
		if len(uses) == 0 {
			if text == "" {
				return orchestrate.GenerateResult{}, fmt.Errorf("anthropic: no text in response (stop reason %q)", msg.StopReason)
			}
			result.Text = text
			return result, nil
		}
		if turn >= c.maxToolTurns {
			return orchestrate.GenerateResult{}, fmt.Errorf("anthropic: tool turn limit (%d) exceeded", c.maxToolTurns)
		}

		messages = append(messages, msg.ToParam())
		results := make([]anthropic.ContentBlockParamUnion, 0, len(uses))
		for _, use := range uses {
			content, isError := c.invoke(ctx, adapters, use)
			results = append(results, anthropic.NewToolResultBlock(use.ID, content, isError))
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}
}

// invoke runs one adapter call, reporting failures back to the model as
// error tool results rather than aborting the generation.
func (c *Client) invoke(ctx context.Context, adapters map[string]orchestrate.Adapter, use anthropic.ToolUseBlock) (string, bool) {
	adapter, ok := adapters[use.Name]
	if !ok {
		return fmt.Sprintf("unknown tool %q", use.Name), true
	}
	output, err := adapter.Invoke(ctx, use.Input)
	if err != nil {
		return err.Error(), true
	}
	if len(output) == 0 {
		return "null", false
	}
	return string(output), false
}

func parseResponse(msg *anthropic.Message) (string, []anthropic.ToolUseBlock) {
	var text strings.Builder
	var uses []anthropic.ToolUseBlock
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			uses = append(uses, variant)
		}
	}
	return strings.TrimSpace(text.String()), uses
}

func toolParams(adapters []orchestrate.Adapter) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(adapters))
	for _, adapter := range adapters {
		def := adapter.Definition()
		param := anthropic.ToolParam{
			Name:        def.Name,
			InputSchema: schemaFromRaw(def.InputSchema),
		}
		if desc := strings.TrimSpace(def.Description); desc != "" {
			param.Description = anthropic.String(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

func schemaFromRaw(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	schema := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &schema)
	}

	props := schema["properties"]
	required := requiredFields(schema["required"])

	extras := map[string]any{}
	for key, value := range schema {
		switch key {
		case "properties", "required", "type", "$schema":
			continue
		default:
			extras[key] = value
		}
	}

	param := anthropic.ToolInputSchemaParam{
		Properties: props,
		Required:   required,
	}
	if len(extras) > 0 {
		param.ExtraFields = extras
	}
	return param
}

func requiredFields(value any) []string {
	switch items := value.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

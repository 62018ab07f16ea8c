package orchestrate

import "context"

// GenerateRequest is one model invocation: a compiled prompt plus the
// adapters the model may call during generation. The model decides at
// generation time whether and how often to invoke each adapter.
type GenerateRequest struct {
	Model    string
	Prompt   string
	Adapters []Adapter
}

// GenerateResult is the final text plus optional side-channel metadata.
type GenerateResult struct {
	Text    string
	Sources []Source
	Usage   *Usage
}

// Generator performs a single model invocation, optionally with internal
// tool round-trips, and returns the final generated text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GeneratorFunc adapts a function to a Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (GenerateResult, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	return f(ctx, req)
}

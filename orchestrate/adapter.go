package orchestrate

import (
	"context"
	"encoding/json"
)

// Definition describes a capability and the arguments it accepts.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Adapter wraps one external capability behind a uniform callable
// signature: named JSON arguments in, a structured JSON result out.
type Adapter interface {
	Definition() Definition
	Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// InvokeFunc is the function form of an adapter callable.
type InvokeFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

type funcAdapter struct {
	def Definition
	fn  InvokeFunc
}

// NewAdapter builds an adapter from a definition and a function.
func NewAdapter(def Definition, fn InvokeFunc) Adapter {
	return funcAdapter{def: def, fn: fn}
}

func (a funcAdapter) Definition() Definition { return a.def }

func (a funcAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return a.fn(ctx, input)
}

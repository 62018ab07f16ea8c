package orchestrate

import "time"

// State is the lifecycle stage of a Request.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Parameter is one named substitution for a prompt template.
// Order is preserved so the first value can label the request.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Source is grounding/citation metadata returned alongside generated text.
// It is display-only; nothing in the core depends on it.
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Usage is token accounting reported by a generation provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Request is one unit of generation work tracked through its lifecycle.
// Output is set only in StateCompleted, Failure only in StateFailed.
type Request struct {
	ID           string      `json:"id"`
	Parameters   []Parameter `json:"parameters"`
	CreatedAt    time.Time   `json:"created_at"`
	State        State       `json:"state"`
	Capabilities []string    `json:"capabilities"`
	Output       string      `json:"output,omitempty"`
	Failure      string      `json:"failure,omitempty"`
	Sources      []Source    `json:"sources,omitempty"`
	Usage        *Usage      `json:"usage,omitempty"`
}

func (r *Request) snapshot() Request {
	out := *r
	out.Parameters = append([]Parameter(nil), r.Parameters...)
	out.Capabilities = append([]string(nil), r.Capabilities...)
	out.Sources = append([]Source(nil), r.Sources...)
	if r.Usage != nil {
		usage := *r.Usage
		out.Usage = &usage
	}
	return out
}

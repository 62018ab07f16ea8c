package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rosescout/rosescout/orchestrate/prompt"
)

// PromptSource selects the template for a submission: either a named
// template resolved through the store, or a literal template string.
type PromptSource struct {
	Name    string
	Version int
	Literal string
}

// Submission is the input accepted by Submit.
type Submission struct {
	Model        string
	Prompt       PromptSource
	Parameters   []Parameter
	Capabilities []string
}

// Scheduler creates ledger entries and runs each request's generation
// pipeline on its own goroutine. The submitting caller never blocks on
// generation; completion is observed only by polling the ledger.
type Scheduler struct {
	ledger    *Ledger
	table     *Table
	generator Generator
	store     prompt.Store
}

// NewScheduler wires a scheduler to its collaborators. The store may be
// nil when only literal prompt sources are used.
func NewScheduler(ledger *Ledger, table *Table, generator Generator, store prompt.Store) (*Scheduler, error) {
	if ledger == nil {
		return nil, errors.New("scheduler: ledger is required")
	}
	if table == nil {
		return nil, errors.New("scheduler: table is required")
	}
	if generator == nil {
		return nil, errors.New("scheduler: generator is required")
	}
	return &Scheduler{ledger: ledger, table: table, generator: generator, store: store}, nil
}

// Submit validates the prompt source, records a pending request and
// dispatches its execution. A template name that cannot be resolved is a
// synchronous submission error and no request is created; everything that
// can fail later terminates as a Failed request instead of propagating.
func (s *Scheduler) Submit(ctx context.Context, sub Submission) (string, error) {
	tmpl, err := s.resolvePrompt(ctx, sub.Prompt)
	if err != nil {
		return "", err
	}

	id := s.ledger.Submit(sub.Parameters, sub.Capabilities)
	go s.run(id, sub, tmpl)
	return id, nil
}

func (s *Scheduler) resolvePrompt(ctx context.Context, src PromptSource) (prompt.Template, error) {
	if src.Name != "" {
		if s.store == nil {
			return prompt.Template{}, errors.New("scheduler: no template store configured")
		}
		return s.store.Get(ctx, src.Name, src.Version)
	}
	return prompt.Template{Name: "literal", Text: src.Literal}, nil
}

// run executes one request to a terminal state. Nothing escapes this
// boundary: errors and panics both terminate as a Failed request.
func (s *Scheduler) run(id string, sub Submission, tmpl prompt.Template) {
	defer func() {
		if r := recover(); r != nil {
			_ = s.ledger.Fail(id, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.ledger.MarkRunning(id); err != nil {
		return
	}

	result, err := s.execute(sub, tmpl)
	if err != nil {
		_ = s.ledger.Fail(id, err.Error())
		return
	}
	_ = s.ledger.Complete(id, result.Text, result.Sources, result.Usage)
}

func (s *Scheduler) execute(sub Submission, tmpl prompt.Template) (GenerateResult, error) {
	vars := make(map[string]string, len(sub.Parameters))
	for _, param := range sub.Parameters {
		vars[param.Name] = param.Value
	}
	compiled, err := tmpl.Compile(vars)
	if err != nil {
		return GenerateResult{}, err
	}

	adapters := s.table.Resolve(sub.Capabilities)

	// Dispatched work is deliberately detached from the submitting
	// context: once accepted, a request always runs to a terminal state.
	return s.generator.Generate(context.Background(), GenerateRequest{
		Model:    sub.Model,
		Prompt:   compiled,
		Adapters: adapters,
	})
}

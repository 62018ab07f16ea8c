package orchestrate

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ledger is the authoritative in-memory registry of all requests.
// The collection is append-only; only state, output and failure mutate,
// always under the ledger lock, so readers never observe a half-updated
// request. The lock is never held across an external call.
type Ledger struct {
	mu    sync.Mutex
	byID  map[string]*Request
	order []*Request
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byID: make(map[string]*Request)}
}

// Submit records a new pending request and returns its identifier.
// Empty parameter sets are permitted.
func (l *Ledger) Submit(params []Parameter, capabilities []string) string {
	req := &Request{
		ID:           newRequestID(params),
		Parameters:   append([]Parameter(nil), params...),
		CreatedAt:    time.Now(),
		State:        StatePending,
		Capabilities: append([]string(nil), capabilities...),
	}

	l.mu.Lock()
	l.byID[req.ID] = req
	l.order = append(l.order, req)
	l.mu.Unlock()

	return req.ID
}

// Get returns a copy of the request with the given id.
func (l *Ledger) Get(id string) (Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.byID[id]
	if !ok {
		return Request{}, false
	}
	return req.snapshot(), true
}

// List returns a consistent snapshot of all requests, most recent first.
func (l *Ledger) List() []Request {
	l.mu.Lock()
	out := make([]Request, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		out = append(out, l.order[i].snapshot())
	}
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked requests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// MarkRunning moves a pending request to running.
func (l *Ledger) MarkRunning(id string) error {
	return l.transition(id, StateRunning, func(req *Request) {})
}

// Complete moves a running request to its successful terminal state.
// Sources and usage are optional side-channel metadata for display.
func (l *Ledger) Complete(id, output string, sources []Source, usage *Usage) error {
	return l.transition(id, StateCompleted, func(req *Request) {
		req.Output = output
		req.Sources = append([]Source(nil), sources...)
		if usage != nil {
			u := *usage
			req.Usage = &u
		}
	})
}

// Fail moves a request to its failed terminal state.
func (l *Ledger) Fail(id, failure string) error {
	return l.transition(id, StateFailed, func(req *Request) {
		req.Failure = failure
	})
}

func (l *Ledger) transition(id string, next State, apply func(*Request)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if !validTransition(req.State, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.State, next)
	}
	req.State = next
	apply(req)
	return nil
}

// validTransition enforces the one-directional lifecycle:
// pending -> running -> completed | failed.
func validTransition(from, to State) bool {
	switch to {
	case StateRunning:
		return from == StatePending
	case StateCompleted:
		return from == StateRunning
	case StateFailed:
		return from == StatePending || from == StateRunning
	default:
		return false
	}
}

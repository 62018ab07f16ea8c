package orchestrate

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestSubmitIDShape(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "topic", Value: "Napoleon Bonaparte"}}, []string{"web-search"})

	if !strings.HasPrefix(id, "Napoleon Bonapa") {
		t.Fatalf("expected truncated label prefix, got %q", id)
	}
	if len(id) != idLabelLength+idSuffixLength {
		t.Fatalf("expected %d chars, got %d (%q)", idLabelLength+idSuffixLength, len(id), id)
	}

	req, ok := l.Get(id)
	if !ok {
		t.Fatalf("request not found after submit")
	}
	if req.State != StatePending {
		t.Fatalf("expected pending, got %s", req.State)
	}
}

func TestSubmitMultibyteLabel(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "name", Value: "Владимир Путин"}}, nil)

	if !utf8.ValidString(id) {
		t.Fatalf("id is not valid UTF-8: %q", id)
	}
	if !strings.HasPrefix(id, "Владимир Путин") {
		t.Fatalf("expected full 14-rune label, got %q", id)
	}
	if _, ok := l.Get(id); !ok {
		t.Fatalf("request not found by its own id")
	}

	// A JSON round-trip must return the exact ledger key.
	encoded, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal id: %v", err)
	}
	var decoded string
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal id: %v", err)
	}
	if decoded != id {
		t.Fatalf("id changed across JSON round-trip: %q -> %q", id, decoded)
	}
}

func TestSubmitMultibyteLabelTruncatesByRunes(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "name", Value: "Екатерина Великая II"}}, nil)

	if !utf8.ValidString(id) {
		t.Fatalf("id is not valid UTF-8: %q", id)
	}
	if !strings.HasPrefix(id, "Екатерина Велик") {
		t.Fatalf("expected 15-rune label prefix, got %q", id)
	}
	runes := []rune(id)
	if len(runes) != idLabelLength+idSuffixLength {
		t.Fatalf("expected %d runes, got %d (%q)", idLabelLength+idSuffixLength, len(runes), id)
	}
	if _, ok := l.Get(id); !ok {
		t.Fatalf("request not found by its own id")
	}
}

func TestSubmitShortLabel(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "q", Value: "Ada"}}, nil)
	if !strings.HasPrefix(id, "Ada") || len(id) != 3+idSuffixLength {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestSubmitEmptyParameters(t *testing.T) {
	l := NewLedger()
	id := l.Submit(nil, nil)
	if len(id) != idSuffixLength {
		t.Fatalf("expected bare suffix id, got %q", id)
	}
	if _, ok := l.Get(id); !ok {
		t.Fatalf("request not found")
	}
}

func TestConcurrentSubmitUniqueIDs(t *testing.T) {
	l := NewLedger()
	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	ids := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- l.Submit([]Parameter{{Name: "topic", Value: "same input"}}, nil)
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d ids, got %d", workers*perWorker, len(seen))
	}
}

func TestTransitionLifecycle(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "topic", Value: "x"}}, nil)

	if err := l.MarkRunning(id); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := l.Complete(id, "answer", nil, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	req, _ := l.Get(id)
	if req.State != StateCompleted || req.Output != "answer" || req.Failure != "" {
		t.Fatalf("unexpected terminal request: %+v", req)
	}
}

func TestTransitionMonotonic(t *testing.T) {
	l := NewLedger()
	id := l.Submit(nil, nil)

	if err := l.Complete(id, "too early", nil, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := l.MarkRunning(id); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := l.Fail(id, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := l.MarkRunning(id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected regression rejection, got %v", err)
	}
	if err := l.Complete(id, "late", nil, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected terminal state to be final, got %v", err)
	}

	req, _ := l.Get(id)
	if req.State != StateFailed || req.Failure != "boom" || req.Output != "" {
		t.Fatalf("terminal state mutated: %+v", req)
	}
}

func TestTransitionUnknownRequest(t *testing.T) {
	l := NewLedger()
	if err := l.MarkRunning("missing"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	l := NewLedger()
	first := l.Submit([]Parameter{{Name: "n", Value: "first"}}, nil)
	second := l.Submit([]Parameter{{Name: "n", Value: "second"}}, nil)
	third := l.Submit([]Parameter{{Name: "n", Value: "third"}}, nil)

	all := l.List()
	if len(all) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(all))
	}
	if all[0].ID != third || all[1].ID != second || all[2].ID != first {
		t.Fatalf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	l := NewLedger()
	id := l.Submit([]Parameter{{Name: "topic", Value: "original"}}, []string{"web-search"})

	req, _ := l.Get(id)
	req.Parameters[0].Value = "mutated"
	req.Capabilities[0] = "mutated"

	again, _ := l.Get(id)
	if again.Parameters[0].Value != "original" || again.Capabilities[0] != "web-search" {
		t.Fatalf("ledger state leaked through snapshot: %+v", again)
	}
}

// A list concurrent with transitions must never observe a completed
// request without output or a failed request without failure.
func TestSnapshotConsistency(t *testing.T) {
	l := NewLedger()
	const n = 40
	ids := make([]string, n)
	for i := range ids {
		ids[i] = l.Submit([]Parameter{{Name: "i", Value: "req"}}, nil)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, id := range ids {
			_ = l.MarkRunning(id)
			if i%2 == 0 {
				_ = l.Complete(id, "output", []Source{{Title: "t", URI: "u"}}, nil)
			} else {
				_ = l.Fail(id, "failure")
			}
		}
	}()

	for {
		for _, req := range l.List() {
			switch req.State {
			case StateCompleted:
				if req.Output == "" || req.Failure != "" {
					t.Fatalf("inconsistent completed request: %+v", req)
				}
			case StateFailed:
				if req.Failure == "" || req.Output != "" {
					t.Fatalf("inconsistent failed request: %+v", req)
				}
			case StatePending, StateRunning:
				if req.Output != "" || req.Failure != "" {
					t.Fatalf("non-terminal request carries outcome: %+v", req)
				}
			}
		}
		select {
		case <-done:
			if l.Len() != n {
				t.Fatalf("expected %d requests, got %d", n, l.Len())
			}
			return
		default:
		}
	}
}

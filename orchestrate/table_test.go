package orchestrate

import (
	"context"
	"encoding/json"
	"testing"
)

func echoAdapter(name string) Adapter {
	return NewAdapter(Definition{Name: name}, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return input, nil
	})
}

func TestTableResolveDropsUnknown(t *testing.T) {
	table := NewTable()
	if err := table.Register(echoAdapter("web-search"), echoAdapter("get-coordinates")); err != nil {
		t.Fatalf("register: %v", err)
	}

	adapters := table.Resolve([]string{"get-coordinates", "no-such-capability", "web-search"})
	if len(adapters) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(adapters))
	}
	if adapters[0].Definition().Name != "get-coordinates" || adapters[1].Definition().Name != "web-search" {
		t.Fatalf("request order not preserved")
	}
}

func TestTableResolveDeduplicates(t *testing.T) {
	table := NewTable()
	table.Register(echoAdapter("web-search"))

	adapters := table.Resolve([]string{"web-search", "web-search"})
	if len(adapters) != 1 {
		t.Fatalf("expected 1 adapter, got %d", len(adapters))
	}
}

func TestTableRegisterRejectsInvalid(t *testing.T) {
	table := NewTable()
	if err := table.Register(nil); err == nil {
		t.Fatalf("expected error for nil adapter")
	}
	if err := table.Register(echoAdapter("")); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestTableDefinitionsSorted(t *testing.T) {
	table := NewTable()
	table.Register(echoAdapter("web-search"), echoAdapter("calculate-distance"), echoAdapter("get-coordinates"))

	defs := table.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0].Name != "calculate-distance" || defs[1].Name != "get-coordinates" || defs[2].Name != "web-search" {
		t.Fatalf("definitions not in stable order: %+v", defs)
	}
}

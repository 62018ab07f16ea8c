package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompileSubstitutes(t *testing.T) {
	tmpl := Template{Text: "Research {{topic}} near {{ city }}."}
	out, err := tmpl.Compile(map[string]string{"topic": "sanctions", "city": "Lisbon"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out != "Research sanctions near Lisbon." {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCompileMissingVariable(t *testing.T) {
	tmpl := Template{Text: "{{a}} {{b}} {{a}}"}
	_, err := tmpl.Compile(map[string]string{"a": "x"})
	if !errors.Is(err, ErrMissingVariable) {
		t.Fatalf("expected missing variable, got %v", err)
	}
	if !strings.Contains(err.Error(), "b") {
		t.Fatalf("error should name the variable: %v", err)
	}
}

func TestCompileEmptyValueIsPresent(t *testing.T) {
	tmpl := Template{Text: "prefix {{gap}} suffix"}
	out, err := tmpl.Compile(map[string]string{"gap": ""})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out != "prefix  suffix" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestVariables(t *testing.T) {
	tmpl := Template{Text: "{{b}} {{a}} {{b}}"}
	vars := tmpl.Variables()
	if len(vars) != 2 || vars[0] != "b" || vars[1] != "a" {
		t.Fatalf("unexpected variables %v", vars)
	}
}

func TestMemoryStoreVersions(t *testing.T) {
	store := NewMemoryStore()
	store.Add("search", "v1 body")
	store.Add("search", "v2 body")

	latest, err := store.Get(context.Background(), "search", 0)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.Version != 2 || latest.Text != "v2 body" {
		t.Fatalf("unexpected latest %+v", latest)
	}

	first, err := store.Get(context.Background(), "search", 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if first.Text != "v1 body" {
		t.Fatalf("unexpected v1 %+v", first)
	}

	if _, err := store.Get(context.Background(), "search", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for bad version, got %v", err)
	}
	if _, err := store.Get(context.Background(), "absent", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "entity-search.md"), []byte("Find {{topic}}.\n"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain {{x}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	src := FileSource{Root: dir}
	tmpl, err := src.Get(context.Background(), "entity-search", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tmpl.Text != "Find {{topic}}." {
		t.Fatalf("unexpected text %q", tmpl.Text)
	}

	if _, err := src.Get(context.Background(), "missing", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := src.Get(context.Background(), "../entity-search", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected traversal rejection, got %v", err)
	}

	names, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 templates, got %v", names)
	}
}

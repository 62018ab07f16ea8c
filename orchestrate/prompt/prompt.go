// Package prompt provides named, versioned prompt templates with
// placeholder substitution.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound        = errors.New("prompt: template not found")
	ErrMissingVariable = errors.New("prompt: missing variable")
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Template is a prompt body with {{name}} placeholders.
type Template struct {
	Name    string
	Version int
	Text    string
}

// Variables returns the distinct placeholder names in order of first use.
func (t Template) Variables() []string {
	matches := placeholderPattern.FindAllStringSubmatch(t.Text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Compile substitutes vars into the template. A placeholder with no
// corresponding variable is an error, never a silent blank substitution.
// An empty string value is a present variable.
func (t Template) Compile(vars map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(dedupe(missing), ", "))
	}
	return out, nil
}

func dedupe(names []string) []string {
	out := names[:0]
	for i, name := range names {
		if i > 0 && name == names[i-1] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Store looks up templates by name. Version 0 means latest.
type Store interface {
	Get(ctx context.Context, name string, version int) (Template, error)
}

// MemoryStore keeps versioned templates in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]Template
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]Template)}
}

// Add registers the next version of a named template and returns it.
func (m *MemoryStore) Add(name, text string) Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmpl := Template{Name: name, Version: len(m.versions[name]) + 1, Text: text}
	m.versions[name] = append(m.versions[name], tmpl)
	return tmpl
}

// Get returns the requested version, or the latest when version is 0.
func (m *MemoryStore) Get(ctx context.Context, name string, version int) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.versions[name]
	if len(all) == 0 {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if version == 0 {
		return all[len(all)-1], nil
	}
	if version < 1 || version > len(all) {
		return Template{}, fmt.Errorf("%w: %s version %d", ErrNotFound, name, version)
	}
	return all[version-1], nil
}

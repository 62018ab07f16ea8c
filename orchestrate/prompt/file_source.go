package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource serves templates from a directory. The template name is the
// file name without its extension; versions are not tracked, so any
// requested version resolves to the file's current contents.
type FileSource struct {
	Root string
}

var fileExtensions = []string{".md", ".txt"}

// Get loads the named template from disk.
func (f FileSource) Get(ctx context.Context, name string, version int) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	if f.Root == "" {
		return Template{}, fmt.Errorf("prompt: file source root is empty")
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for _, ext := range fileExtensions {
		data, err := os.ReadFile(filepath.Join(f.Root, name+ext))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Template{}, fmt.Errorf("prompt: read %s: %w", name, err)
		}
		return Template{Name: name, Version: 1, Text: strings.TrimRight(string(data), "\n")}, nil
	}
	return Template{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the names of every template under the root directory.
func (f FileSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, fmt.Errorf("prompt: list templates: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		for _, allowed := range fileExtensions {
			if ext == allowed {
				names = append(names, strings.TrimSuffix(entry.Name(), ext))
				break
			}
		}
	}
	return names, nil
}

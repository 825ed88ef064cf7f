package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Overrides []string `yaml:"overrides"`
}

// YAMLOverrides keeps the set in a YAML document rewritten on every change.
type YAMLOverrides struct {
	path string

	mu  sync.Mutex
	set map[string]struct{}
}

// OpenYAML reads path if it exists. A missing file is an empty set.
func OpenYAML(path string) (*YAMLOverrides, error) {
	s := &YAMLOverrides{path: path, set: map[string]struct{}{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	var doc yamlFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}
	for _, p := range doc.Overrides {
		s.set[p] = struct{}{}
	}
	return s, nil
}

func (s *YAMLOverrides) Load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *YAMLOverrides) Set(_ context.Context, path string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, had := s.set[path]
	if had == on {
		return nil
	}
	if on {
		s.set[path] = struct{}{}
	} else {
		delete(s.set, path)
	}
	return s.flush()
}

func (s *YAMLOverrides) Close() error { return nil }

func (s *YAMLOverrides) sorted() []string {
	out := make([]string, 0, len(s.set))
	for p := range s.set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// flush writes through a temp file so a crash never leaves a torn document.
func (s *YAMLOverrides) flush() error {
	data, err := yaml.Marshal(yamlFile{Overrides: s.sorted()})
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".overrides-*")
	if err != nil {
		return fmt.Errorf("failed to write overrides: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write overrides: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write overrides: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Package store persists manual paging overrides across runs. Overrides are
// keyed by image path; a path present in the store has its page break
// toggled.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by Open for targets no backend accepts.
var ErrUnsupported = errors.New("unsupported override store target")

// Overrides is a persistent set of image paths.
type Overrides interface {
	// Load returns every stored path.
	Load(ctx context.Context) ([]string, error)
	// Set adds path when on is true and removes it otherwise.
	Set(ctx context.Context, path string, on bool) error
	Close() error
}

// Open picks a backend from target: redis:// and rediss:// URLs use a Redis
// set, .db and .sqlite files a SQLite table, anything else a YAML file.
func Open(ctx context.Context, target string) (Overrides, error) {
	if target == "" {
		return nil, ErrUnsupported
	}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		s, err := NewRedisOverrides(ctx, target, DefaultRedisKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	switch strings.ToLower(filepath.Ext(target)) {
	case ".db", ".sqlite", ".sqlite3":
		s, err := OpenSQLite(target)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenYAML(target)
	if err != nil {
		return nil, err
	}
	return s, nil
}

package statuscheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type loader struct {
	paths []string
	err   error
}

func (l loader) Load(context.Context) ([]string, error) { return l.paths, l.err }

func TestSummaryAllConfigured(t *testing.T) {
	c := New(Options{
		Redis:    pinger{},
		Store:    loader{paths: []string{"/a.png", "/b.png"}},
		SpoolDir: filepath.Join(t.TempDir(), "spool"),
	})
	s := c.Summary(context.Background())
	if !s.OK() {
		t.Fatalf("summary not ok: %+v", s)
	}
	if !s.Redis.OK || s.Store.Message != "2 overrides" || !s.Spool.OK {
		t.Fatalf("summary = %+v", s)
	}
	if !s.AWS.Skipped {
		t.Fatalf("AWS check should be skipped: %+v", s.AWS)
	}
}

func TestSummaryFailures(t *testing.T) {
	c := New(Options{
		Redis: pinger{err: errors.New("connection refused")},
		Store: loader{err: errors.New(strings.Repeat("x", 300))},
	})
	s := c.Summary(context.Background())
	if s.OK() {
		t.Fatalf("summary should fail: %+v", s)
	}
	if s.Redis.OK || s.Redis.Message != "connection refused" {
		t.Fatalf("redis = %+v", s.Redis)
	}
	if len(s.Store.Message) != 120 {
		t.Fatalf("store message not trimmed: %d", len(s.Store.Message))
	}
}

func TestSummaryNothingConfigured(t *testing.T) {
	s := New(Options{}).Summary(context.Background())
	if !s.Redis.Skipped || !s.Store.Skipped || !s.OK() {
		t.Fatalf("summary = %+v", s)
	}
}

func TestSpoolNotWritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Options{SpoolDir: filepath.Join(file, "sub")}).Summary(context.Background())
	if s.Spool.OK {
		t.Fatalf("spool under a regular file should fail: %+v", s.Spool)
	}
}

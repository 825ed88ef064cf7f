package logger

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool

    // Console receives the human-facing stream; defaults to stderr because
    // stdout is reserved for status lines.
    Console io.Writer

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

var (
    global  zerolog.Logger
    fwd     *forwarder
    session string
)

// Init replaces the global zerolog logger. Records fan out to the console,
// an optional rotated file and an optional Axiom dataset, and every record
// carries the process session id.
func Init(opts Options) error {
    Close()

    sinks, err := fileSink(opts)
    if err != nil { return err }
    sinks = append(sinks, consoleSink(opts))

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        f, err := newForwarder(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            fwd = f
            sinks = append(sinks, f)
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    session = uuid.NewString()
    global = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
        Level(parseLevel(opts.Level)).
        With().Timestamp().Str("session", session).
        Logger()
    log.Logger = global
    return nil
}

func fileSink(opts Options) ([]io.Writer, error) {
    if opts.File == "" { return nil, nil }
    if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
        return nil, fmt.Errorf("create logs dir: %w", err)
    }
    return []io.Writer{&lumberjack.Logger{
        Filename:   opts.File,
        MaxSize:    opts.MaxSizeMB,
        MaxBackups: opts.MaxBackups,
        MaxAge:     opts.MaxAgeDays,
        Compress:   opts.Compress,
    }}, nil
}

func consoleSink(opts Options) io.Writer {
    out := opts.Console
    if out == nil { out = os.Stderr }
    if !opts.Pretty { return out }
    return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
}

func parseLevel(s string) zerolog.Level {
    if s == "" { return zerolog.InfoLevel }
    lvl, err := zerolog.ParseLevel(s)
    if err != nil { return zerolog.InfoLevel }
    return lvl
}

// Close flushes the Axiom forwarder, if any.
func Close() {
    if fwd != nil {
        _ = fwd.Close()
        fwd = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Session returns the id attached to every record of this process.
func Session() string { return session }

// Package statuscheck reports whether the optional collaborators of the
// viewer (Redis command channel, override store, AWS credentials, spool
// directory) are usable. It backs the `check` subcommand.
package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "os"
    "time"

    awscfg "github.com/aws/aws-sdk-go-v2/config"

    "github.com/local/mangaview/internal/storage"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// Loader is satisfied by override stores.
type Loader interface {
    Load(ctx context.Context) ([]string, error)
}

// Checker aggregates health checks for external dependencies.
type Checker struct {
    redis    RedisPinger
    store    Loader
    spoolDir string
    checkAWS bool
}

// Options configures the Checker. Nil collaborators are reported as not
// configured.
type Options struct {
    Redis    RedisPinger
    Store    Loader
    SpoolDir string
    // AWS enables the credential chain check; it can be slow outside AWS.
    AWS bool
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Skipped bool   `json:"skipped,omitempty"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis Status `json:"redis"`
    Store Status `json:"store"`
    AWS   Status `json:"aws"`
    Spool Status `json:"spool"`
}

// OK reports whether every configured subsystem is ready.
func (s Summary) OK() bool {
    for _, st := range []Status{s.Redis, s.Store, s.AWS, s.Spool} {
        if !st.OK && !st.Skipped { return false }
    }
    return true
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:    opts.Redis,
        store:    opts.Store,
        spoolDir: opts.SpoolDir,
        checkAWS: opts.AWS,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis: c.checkRedis(ctx),
        Store: c.checkStore(ctx),
        AWS:   c.checkCredentials(ctx),
        Spool: c.checkSpool(),
    }
}

func skipped() Status { return Status{Skipped: true, Message: "not configured"} }

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil { return skipped() }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkStore(ctx context.Context) Status {
    if c.store == nil { return skipped() }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    paths, err := c.store.Load(ctx)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: fmt.Sprintf("%d overrides", len(paths))}
}

func (c *Checker) checkCredentials(ctx context.Context) Status {
    if !c.checkAWS { return skipped() }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    creds, err := cfg.Credentials.Retrieve(ctx)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Credentials from " + creds.Source}
}

func (c *Checker) checkSpool() Status {
    dir := c.spoolDir
    if dir == "" {
        dir = os.TempDir()
        if d, err := storage.DefaultSpoolDir(); err == nil { dir = d }
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    f, err := os.CreateTemp(dir, ".check-*")
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    name := f.Name()
    f.Close()
    os.Remove(name)
    return Status{OK: true, Message: "Writable: " + dir}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}

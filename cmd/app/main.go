package main

import (
    "bufio"
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "sync"
    "time"

    "github.com/charmbracelet/fang"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"

    cfgpkg "github.com/local/mangaview/internal/config"
    "github.com/local/mangaview/internal/imagerender"
    "github.com/local/mangaview/internal/lazy"
    logpkg "github.com/local/mangaview/internal/logger"
    "github.com/local/mangaview/internal/metrics"
    "github.com/local/mangaview/internal/pageside"
    "github.com/local/mangaview/internal/queue"
    "github.com/local/mangaview/internal/storage"
    "github.com/local/mangaview/internal/store"
    "github.com/local/mangaview/internal/viewer"
)

const version = "0.3.0"

type flags struct {
    configPath  string
    saveRepage  string
    wideFactor  float64
    metricsAddr string
    workers     int
}

func newRootCmd() *cobra.Command {
    var f flags
    cmd := &cobra.Command{
        Use:   "mangaview",
        Short: "Manga page viewer driven by line commands on stdin",
        Long: `mangaview pairs manga pages into spreads, keeps the pages around the
cursor decoded in the background and reports its position on stdout.

Commands are read one per line, e.g. add_images(1, /path/01.png) or
goto_relative(1).`,
        SilenceUsage: true,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := cfgpkg.Load(f.configPath)
            if err != nil { return err }
            applyFlags(cmd, f, &cfg)

            _ = logpkg.Init(logpkg.Options{
                Level: cfg.Logging.Level,
                Pretty: cfg.Logging.Pretty,
                File: cfg.Logging.File,
                MaxSizeMB: cfg.Logging.MaxSizeMB,
                MaxBackups: cfg.Logging.MaxBackups,
                MaxAgeDays: cfg.Logging.MaxAgeDays,
                Compress: cfg.Logging.Compress,
                SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
                AxiomAPIKey: cfg.Axiom.APIKey,
                AxiomOrgID: cfg.Axiom.OrgID,
                AxiomDataset: cfg.Axiom.Dataset,
                AxiomFlush: cfg.Axiom.FlushInterval,
            })
            defer logpkg.Close()

            metrics.Init()
            if cfg.Metrics.Addr != "" { serveMetrics(cmd.Context(), cfg.Metrics.Addr) }

            return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
        },
    }
    cmd.PersistentFlags().StringVar(&f.configPath, "config", "", "dotenv file loaded before the environment")
    cmd.Flags().StringVar(&f.saveRepage, "save-repage", "", "persist repage overrides (file.yaml, file.db or redis://...)")
    cmd.Flags().Float64Var(&f.wideFactor, "wide-factor", 1, "multiplier for the wide page ratio")
    cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
    cmd.Flags().IntVar(&f.workers, "workers", 0, "decode workers (0 = one per core minus one)")
    cmd.AddCommand(newCheckCmd(&f))
    return cmd
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, f flags, cfg *cfgpkg.Config) {
    if cmd.Flags().Changed("save-repage") { cfg.Store.Target = f.saveRepage }
    if cmd.Flags().Changed("wide-factor") { cfg.Paging.WideFactor = f.wideFactor }
    if cmd.Flags().Changed("metrics-addr") { cfg.Metrics.Addr = f.metricsAddr }
    if cmd.Flags().Changed("workers") { cfg.Worker.Concurrency = f.workers }
}

func serveMetrics(ctx context.Context, addr string) {
    mux := http.NewServeMux()
    mux.Handle("/metrics", metrics.Handler())
    srv := &http.Server{Addr: addr, Handler: mux}
    go func() {
        log.Info().Msgf("metrics listening on %s", addr)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error().Err(err).Msg("metrics server error")
        }
    }()
    go func() {
        <-ctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = srv.Shutdown(sctx)
    }()
}

// statusWriter serializes status lines to out and, when set, the Redis
// status channel.
type statusWriter struct {
    mu  sync.Mutex
    out io.Writer
    q   *queue.CommandQueue
    ctx context.Context
}

func (w *statusWriter) emit(line string) {
    w.mu.Lock()
    fmt.Fprintln(w.out, line)
    w.mu.Unlock()
    if w.q != nil {
        if err := w.q.Publish(w.ctx, line); err != nil {
            log.Error().Err(err).Msg("failed to publish status")
        }
    }
}

// run drives the viewer until quit(), context cancellation, or end of input
// when no Redis command channel is configured.
func run(ctx context.Context, cfg cfgpkg.Config, in io.Reader, out io.Writer) error {
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()

    workers := cfg.Worker.Concurrency
    if workers <= 0 { workers = lazy.DefaultWorkers() }
    pool := lazy.NewPool(workers)
    defer pool.Close()

    classifier := pageside.New(pageside.Options{
        StripWidth:        cfg.Classifier.StripWidth,
        VarianceThreshold: cfg.Classifier.VarianceThreshold,
        DarkLevel:         cfg.Classifier.DarkLevel,
        LightLevel:        cfg.Classifier.LightLevel,
    })
    resolver := storage.NewResolver(storage.Options{SpoolDir: cfg.Source.SpoolDir, HTTPTimeout: cfg.Source.HTTPTimeout})
    defer func() {
        if err := resolver.Close(); err != nil { log.Warn().Err(err).Msg("failed to remove spool dir") }
    }()
    renderer := imagerender.New(resolver, classifier)

    status := &statusWriter{out: out, ctx: ctx}

    var q *queue.CommandQueue
    if cfg.Queue.RedisURL != "" {
        var err error
        q, err = queue.NewCommandQueue(cfg.Queue.RedisURL, cfg.Queue.CommandList, cfg.Queue.StatusChannel)
        if err != nil { return fmt.Errorf("command queue: %w", err) }
        defer q.Close()
        status.q = q
    }

    opts := viewer.Options{
        Media:     renderer,
        Pool:      pool,
        Emit:      status.emit,
        WideRatio: cfg.Paging.EffectiveWideRatio(),
        MaxZoom:   cfg.Viewport.MaxZoom,
        Width:     cfg.Viewport.Width,
        Height:    cfg.Viewport.Height,
    }
    if cfg.Store.Target != "" {
        st, err := store.Open(ctx, cfg.Store.Target)
        if err != nil { return fmt.Errorf("open override store %s: %w", cfg.Store.Target, err) }
        defer st.Close()
        opts.Store = st
    }

    app, err := viewer.New(ctx, opts)
    if err != nil { return err }

    log.Info().
        Int("workers", pool.Workers()).
        Float64("wide_ratio", opts.WideRatio).
        Str("store", cfg.Store.Target).
        Bool("redis_commands", q != nil).
        Msg("viewer started")
    status.emit("current_mode=" + app.Mode().String())

    stdin := make(chan string, 64)
    go scanLines(ctx, in, stdin)

    remote := make(chan string, 64)
    if q != nil {
        go q.Run(ctx, cfg.Queue.PollTimeout,
            func(l string) {
                select {
                case remote <- l:
                case <-ctx.Done():
                }
            },
            func(err error) { log.Error().Err(err).Msg("command queue error") },
        )
    }

    interval := cfg.Viewport.FrameInterval
    if interval <= 0 { interval = 16 * time.Millisecond }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    title := ""
    frame := func() {
        app.Frame()
        if t := app.Title(); t != title {
            title = t
            log.Debug().Str("title", t).Msg("title changed")
        }
    }

    for {
        select {
        case <-ctx.Done():
            return nil
        case line, ok := <-stdin:
            if !ok {
                if q != nil {
                    stdin = nil
                    continue
                }
                frame()
                log.Info().Msg("input closed")
                return nil
            }
            app.Exec(ctx, line)
        case line := <-remote:
            app.Exec(ctx, line)
        case <-ticker.C:
            frame()
        }
        if app.Quit() {
            log.Info().Msg("quit requested")
            return nil
        }
    }
}

func scanLines(ctx context.Context, in io.Reader, out chan<- string) {
    defer close(out)
    sc := bufio.NewScanner(in)
    sc.Buffer(make([]byte, 64*1024), 1024*1024)
    for sc.Scan() {
        select {
        case out <- sc.Text():
        case <-ctx.Done():
            return
        }
    }
    if err := sc.Err(); err != nil {
        log.Error().Err(err).Msg("failed to read commands")
    }
}

func main() {
    root := newRootCmd()
    if err := fang.Execute(
        context.Background(),
        root,
        fang.WithVersion(version),
        fang.WithNotifySignal(os.Interrupt, os.Kill),
    ); err != nil {
        os.Exit(1)
    }
}

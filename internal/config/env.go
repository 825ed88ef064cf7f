package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// WorkerConfig sizes the decode/classify pool. Zero means one worker per core
// minus the control goroutine.
type WorkerConfig struct {
    Concurrency int
}

// PagingConfig controls manga pairing.
type PagingConfig struct {
    WideRatio  float64 // wide when width > WideRatio*height
    WideFactor float64 // multiplier applied to WideRatio (--wide-factor)
}

// ClassifierConfig tunes the page side classifier.
type ClassifierConfig struct {
    StripWidth        int
    VarianceThreshold float64
    DarkLevel         float64 // negative disables the dark tone test
    LightLevel        float64 // negative disables the light tone test
}

// ViewportConfig is the render surface used to derive fit scales.
type ViewportConfig struct {
    Width         int
    Height        int
    FrameInterval time.Duration
    MaxZoom       float64
}

// StoreConfig selects where manual repage overrides are kept.
// Empty Target disables persistence.
type StoreConfig struct {
    Target string
}

// SourceConfig controls fetching of remote image references.
type SourceConfig struct {
    SpoolDir    string // empty means <user cache dir>/mangaview/spool
    HTTPTimeout time.Duration
}

// QueueConfig defines the optional Redis command channel.
type QueueConfig struct {
    RedisURL      string
    CommandList   string
    StatusChannel string
    PollTimeout   time.Duration
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
    Addr string
}

// Config is the top-level configuration.
type Config struct {
    Logging    LoggingConfig
    Axiom      AxiomConfig
    Worker     WorkerConfig
    Paging     PagingConfig
    Classifier ClassifierConfig
    Viewport   ViewportConfig
    Store      StoreConfig
    Source     SourceConfig
    Queue      QueueConfig
    Metrics    MetricsConfig
}

// Load reads a dotenv file into the environment (existing variables win) and
// then builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
    if path != "" {
        if err := godotenv.Load(path); err != nil {
            return Config{}, fmt.Errorf("load config %s: %w", path, err)
        }
    }
    return FromEnv(), nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults; stdout carries the status protocol so the console
    // writer goes to stderr.
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", ""),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "3"), 3),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "14"), 14),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_mangaview",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Worker = WorkerConfig{
        Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "0"), 0),
    }

    cfg.Paging = PagingConfig{
        WideRatio:  parseFloat(getEnv("WIDE_RATIO", "0.8"), 0.8),
        WideFactor: parseFloat(getEnv("WIDE_FACTOR", "1"), 1),
    }

    cfg.Classifier = ClassifierConfig{
        StripWidth:        parseInt(getEnv("PAGESIDE_STRIP_WIDTH", "3"), 3),
        VarianceThreshold: parseFloat(getEnv("PAGESIDE_VARIANCE", "500"), 500),
        DarkLevel:         parseFloat(getEnv("PAGESIDE_DARK_LEVEL", "8"), 8),
        LightLevel:        parseFloat(getEnv("PAGESIDE_LIGHT_LEVEL", "247"), 247),
    }

    cfg.Viewport = ViewportConfig{
        Width:         parseInt(getEnv("VIEWPORT_WIDTH", "800"), 800),
        Height:        parseInt(getEnv("VIEWPORT_HEIGHT", "600"), 600),
        FrameInterval: parseDuration(getEnv("FRAME_INTERVAL", "16ms"), 16*time.Millisecond),
        MaxZoom:       parseFloat(getEnv("MAX_ZOOM", "3"), 3),
    }

    cfg.Store = StoreConfig{
        Target: getEnv("REPAGE_STORE", ""),
    }

    cfg.Source = SourceConfig{
        SpoolDir:    getEnv("SPOOL_DIR", ""),
        HTTPTimeout: parseDuration(getEnv("HTTP_TIMEOUT", "30s"), 30*time.Second),
    }

    cfg.Queue = QueueConfig{
        RedisURL:      getEnv("COMMAND_REDIS_URL", ""),
        CommandList:   getEnv("COMMAND_LIST", "mangaview:commands"),
        StatusChannel: getEnv("STATUS_CHANNEL", "mangaview:status"),
        PollTimeout:   parseDuration(getEnv("COMMAND_POLL_TIMEOUT", "2s"), 2*time.Second),
    }

    cfg.Metrics = MetricsConfig{
        Addr: getEnv("METRICS_ADDR", ""),
    }

    return cfg
}

// EffectiveWideRatio combines the ratio and the command-line factor.
func (p PagingConfig) EffectiveWideRatio() float64 {
    r := p.WideRatio
    if r <= 0 { r = 0.8 }
    if p.WideFactor > 0 { r *= p.WideFactor }
    return r
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}

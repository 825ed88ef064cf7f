package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    cacheRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "mangaview",
            Name:      "texture_requests_total",
            Help:      "Texture cache lookups by result (ready, promoted, fallback, miss)",
        },
        []string{"result"},
    )

    cacheEvictions = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "mangaview",
            Name:      "texture_evictions_total",
            Help:      "Texture cache entries evicted after a render pass",
        },
    )

    cacheEntries = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "mangaview",
            Name:      "texture_entries",
            Help:      "Texture cache entries, pending or ready",
        },
    )

    decodeLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "mangaview",
            Name:      "decode_duration_seconds",
            Help:      "Duration of decode+resize by result",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"result"},
    )

    classifications = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "mangaview",
            Name:      "pageside_classifications_total",
            Help:      "Page side classifications by result (right, left, both, none, error)",
        },
        []string{"result"},
    )

    classifyLatency = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "mangaview",
            Name:      "pageside_duration_seconds",
            Help:      "Duration of page side classification including decode",
            Buckets:   prometheus.DefBuckets,
        },
    )

    repages = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "mangaview",
            Name:      "repages_total",
            Help:      "Tag repaging runs by view mode",
        },
        []string{"mode"},
    )

    skippedImages = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "mangaview",
            Name:      "skipped_images_total",
            Help:      "Images rejected while adding, by reason",
        },
        []string{"reason"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(cacheRequests, cacheEvictions, cacheEntries, decodeLatency, classifications, classifyLatency, repages, skippedImages)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func CacheRequest(result string) { cacheRequests.WithLabelValues(result).Inc() }
func CacheEvicted(n int)         { cacheEvictions.Add(float64(n)) }
func SetCacheEntries(n int)      { cacheEntries.Set(float64(n)) }

func ObserveDecode(ok bool, dur time.Duration) {
    decodeLatency.WithLabelValues(resultStr(ok)).Observe(dur.Seconds())
}

func ObserveClassify(result string, dur time.Duration) {
    classifications.WithLabelValues(result).Inc()
    classifyLatency.Observe(dur.Seconds())
}

func IncRepage(mode string)   { repages.WithLabelValues(mode).Inc() }
func IncSkipped(reason string) { skippedImages.WithLabelValues(reason).Inc() }

func resultStr(ok bool) string { if ok { return "ok" }; return "error" }

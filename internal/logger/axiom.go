package logger

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
)

const (
    forwardBuffer = 1000
    forwardBatch  = 200
    serviceName   = "mangaview"
)

// ingester is the part of the Axiom client the forwarder uses.
type ingester interface {
    IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// forwarder is a zerolog.LevelWriter that ships info and above to Axiom in
// batches. Frame-level debug records stay local.
type forwarder struct {
    api     ingester
    dataset string
    events  chan axiom.Event
    done    chan struct{}
    once    sync.Once
    wg      sync.WaitGroup

    mu      sync.Mutex
    dropped int
}

func newForwarder(token, orgID, dataset string, every time.Duration) (*forwarder, error) {
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    return startForwarder(c, dataset, every), nil
}

func startForwarder(api ingester, dataset string, every time.Duration) *forwarder {
    if dataset == "" { dataset = "dev_" + serviceName }
    if every <= 0 { every = 10 * time.Second }
    f := &forwarder{
        api:     api,
        dataset: dataset,
        events:  make(chan axiom.Event, forwardBuffer),
        done:    make(chan struct{}),
    }
    f.wg.Add(1)
    go f.run(every)
    return f
}

func (f *forwarder) Write(p []byte) (int, error) {
    return f.WriteLevel(zerolog.InfoLevel, p)
}

func (f *forwarder) WriteLevel(level zerolog.Level, p []byte) (int, error) {
    if level < zerolog.InfoLevel { return len(p), nil }
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{"message": string(p), "level": level.String()}
    }
    ev["service"] = serviceName
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    select {
    case f.events <- ev:
    default:
        f.mu.Lock()
        f.dropped++
        f.mu.Unlock()
    }
    return len(p), nil
}

// Dropped returns how many records were discarded on a full buffer.
func (f *forwarder) Dropped() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.dropped
}

func (f *forwarder) run(every time.Duration) {
    defer f.wg.Done()
    ticker := time.NewTicker(every)
    defer ticker.Stop()

    batch := make([]axiom.Event, 0, forwardBatch)
    ship := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        _, _ = f.api.IngestEvents(ctx, f.dataset, batch)
        cancel()
        batch = make([]axiom.Event, 0, forwardBatch)
    }
    for {
        select {
        case ev := <-f.events:
            batch = append(batch, ev)
            if len(batch) >= forwardBatch { ship() }
        case <-ticker.C:
            ship()
        case <-f.done:
            // Drain what was already accepted.
            for {
                select {
                case ev := <-f.events:
                    batch = append(batch, ev)
                default:
                    ship()
                    return
                }
            }
        }
    }
}

// Close ships pending records and stops the forwarder.
func (f *forwarder) Close() error {
    f.once.Do(func() { close(f.done) })
    f.wg.Wait()
    return nil
}

// Package queue carries viewer commands and status lines over Redis, as a
// second channel next to stdin and stdout.
package queue

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// CommandQueue pops command lines from a Redis list and publishes status
// lines on a channel. The last value of every status key is also kept in a
// hash so late subscribers can read the current state.
type CommandQueue struct {
    client    *redis.Client
    // keys
    List      string
    Channel   string
    StatusKey string
}

// NewCommandQueue connects to Redis and verifies connectivity.
func NewCommandQueue(redisURL, list, channel string) (*CommandQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        _ = c.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return &CommandQueue{
        client:    c,
        List:      list,
        Channel:   channel,
        StatusKey: channel + ":last",
    }, nil
}

func (q *CommandQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *CommandQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Push appends a command line to the list.
func (q *CommandQueue) Push(ctx context.Context, line string) error {
    return q.client.RPush(ctx, q.List, line).Err()
}

// Next blocks up to timeout for one command line. It returns ("", false, nil)
// when the timeout passes without a command.
func (q *CommandQueue) Next(ctx context.Context, timeout time.Duration) (string, bool, error) {
    res, err := q.client.BLPop(ctx, timeout, q.List).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) { return "", false, nil }
        return "", false, err
    }
    // BLPOP replies [key, value].
    if len(res) < 2 { return "", false, nil }
    return res[1], true, nil
}

// Publish sends a status line to subscribers. key=value lines also update
// the status hash.
func (q *CommandQueue) Publish(ctx context.Context, line string) error {
    pipe := q.client.TxPipeline()
    pipe.Publish(ctx, q.Channel, line)
    if k, v, ok := strings.Cut(line, "="); ok && k != "" {
        pipe.HSet(ctx, q.StatusKey, k, v)
    }
    _, err := pipe.Exec(ctx)
    return err
}

// Status returns the last published value per status key.
func (q *CommandQueue) Status(ctx context.Context) (map[string]string, error) {
    res, err := q.client.HGetAll(ctx, q.StatusKey).Result()
    if err == redis.Nil { return map[string]string{}, nil }
    return res, err
}

// Run pops commands until ctx is cancelled and hands each line to handle.
// Transient errors are retried after a short pause.
func (q *CommandQueue) Run(ctx context.Context, poll time.Duration, handle func(string), onErr func(error)) {
    for {
        if ctx.Err() != nil { return }
        line, ok, err := q.Next(ctx, poll)
        if err != nil {
            if ctx.Err() != nil { return }
            if onErr != nil { onErr(err) }
            select {
            case <-ctx.Done():
                return
            case <-time.After(time.Second):
            }
            continue
        }
        if ok { handle(line) }
    }
}

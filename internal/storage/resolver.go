package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3API is the part of the S3 client the downloader needs.
type S3API interface {
	manager.DownloadAPIClient
}

// Resolver turns image references into local file paths. It supports
// s3://bucket/key, http(s):// URLs, file:// URLs and plain paths. Remote
// objects are downloaded once into the spool directory.
type Resolver struct {
	spoolDir   string
	tempSpool  bool
	httpClient *http.Client

	mu    sync.Mutex
	local map[string]string
	s3    S3API
	newS3 func(ctx context.Context) (S3API, error)
}

// Options configures a Resolver.
type Options struct {
	SpoolDir    string
	HTTPTimeout time.Duration
	// S3 overrides the client built from the default AWS config chain.
	S3 S3API
}

// NewResolver creates a resolver. An empty spool dir means
// <user cache dir>/mangaview/spool, or a temp dir when there is no user
// cache dir; either is created on first download.
func NewResolver(opts Options) *Resolver {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	return &Resolver{
		spoolDir:   opts.SpoolDir,
		httpClient: &http.Client{Timeout: opts.HTTPTimeout},
		local:      map[string]string{},
		s3:         opts.S3,
		newS3:      defaultS3,
	}
}

func defaultS3(ctx context.Context) (S3API, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// IsRemote reports whether ref needs a download.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "s3://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Resolve returns a local path for ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), nil
	case !IsRemote(ref):
		return ref, nil
	}

	r.mu.Lock()
	if p, ok := r.local[ref]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	dst, err := r.spoolPath(ref)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(ref, "s3://") {
		err = r.downloadS3(ctx, ref, dst)
	} else {
		err = r.downloadHTTP(ctx, ref, dst)
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	r.mu.Lock()
	r.local[ref] = dst
	r.mu.Unlock()
	return dst, nil
}

// spoolPath lays copies out as <spool>/<hash of the parent URL>/<base name>,
// so the local copy keeps the base name and extension of the remote object.
func (r *Resolver) spoolPath(ref string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spoolDir == "" {
		dir, temp, err := defaultSpoolDir()
		if err != nil {
			return "", fmt.Errorf("create spool dir: %w", err)
		}
		r.spoolDir, r.tempSpool = dir, temp
	}

	u, rest := ref, ""
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u, rest = ref[:i], ref[i:]
	}
	base := path.Base(u)
	if base == "." || base == "/" || strings.HasSuffix(u, "/") {
		base = "index"
	}
	sum := sha256.Sum256([]byte(strings.TrimSuffix(u, base) + rest))
	dir := filepath.Join(r.spoolDir, fmt.Sprintf("%x", sum[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	return filepath.Join(dir, base), nil
}

// DefaultSpoolDir is the spool used when none is configured.
func DefaultSpoolDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "mangaview", "spool"), nil
}

// defaultSpoolDir prefers DefaultSpoolDir so downloads survive restarts, and
// falls back to a temp dir that Close removes.
func defaultSpoolDir() (string, bool, error) {
	if dir, err := DefaultSpoolDir(); err == nil {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir, false, nil
		}
	}
	dir, err := os.MkdirTemp("", "mangaview-spool-*")
	if err != nil {
		return "", false, err
	}
	return dir, true, nil
}

// Close removes the spool dir if the resolver created it as a temp dir.
// Spool dirs that were configured or live in the user cache are kept.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tempSpool || r.spoolDir == "" {
		return nil
	}
	err := os.RemoveAll(r.spoolDir)
	log.Debug().Str("dir", r.spoolDir).Msg("removed temp spool dir")
	r.spoolDir, r.tempSpool = "", false
	r.local = map[string]string{}
	return err
}

func splitS3(ref string) (bucket, key string, err error) {
	p := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return p[:slash], p[slash+1:], nil
}

func (r *Resolver) client(ctx context.Context) (S3API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s3 != nil {
		return r.s3, nil
	}
	c, err := r.newS3(ctx)
	if err != nil {
		return nil, err
	}
	r.s3 = c
	return c, nil
}

func (r *Resolver) downloadS3(ctx context.Context, ref, dst string) error {
	bucket, key, err := splitS3(ref)
	if err != nil {
		return err
	}
	cli, err := r.client(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := manager.NewDownloader(cli).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download from S3: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Str("file", filepath.Base(dst)).Msg("downloaded s3 image to spool")
	return nil
}

func (r *Resolver) downloadHTTP(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return err
	}
	log.Info().Str("url", url).Int64("bytes", n).Str("file", filepath.Base(dst)).Msg("downloaded image to spool")
	return nil
}

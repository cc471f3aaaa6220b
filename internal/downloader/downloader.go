// Package downloader retrieves a finished job's result set: it fetches the
// manifest, then streams every listed file to disk under a bounded worker
// pool. Retrieval is best-effort; individual failures are collected and
// surfaced at the end rather than aborting the batch.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"extractor/internal/apperrors"
	"extractor/pkg/circuitbreaker"
)

// ManifestGetter fetches the manifest document with account authentication.
// The file URLs themselves are pre-signed and need no credentials.
type ManifestGetter interface {
	Get(ctx context.Context, url string) (statusCode int, body []byte, err error)
}

// MetricsRecorder is an optional interface for recording download metrics.
type MetricsRecorder interface {
	RecordDownloadStarted(ctx context.Context)
	RecordDownloadFinished(ctx context.Context, success bool, bytes int64, durationSeconds float64)
}

// manifest is the wire shape of the result manifest document.
type manifest struct {
	URLCount           int      `json:"urlCount"`
	URLList            []string `json:"urlList"`
	TotalFileSizeBytes int64    `json:"totalFileSizeBytes"`
	SuspectMinutesURL  string   `json:"suspectMinutesUrl"`
	ExpiresAt          string   `json:"expiresAt"`
}

// Failure records one result file that could not be retrieved.
type Failure struct {
	URL string
	Err error
}

// Result summarizes one download phase.
type Result struct {
	TotalFiles        int
	Written           int
	Failures          []Failure
	SuspectMinutesURL string
}

// Err aggregates all per-file failures, or nil when everything was written.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.URL, f.Err))
	}
	return merr.ErrorOrNil()
}

// Downloader is a bounded-concurrency bulk fetcher. The admission semaphore
// is the only state shared between workers; units complete in any order.
type Downloader struct {
	api      ManifestGetter
	client   *http.Client
	breakers *circuitbreaker.Registry
	cfg      Config
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// New creates a Downloader.
func New(api ManifestGetter, cfg Config, metrics MetricsRecorder) *Downloader {
	cfg = cfg.withDefaults()
	return &Downloader{
		api: api,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: cfg.Concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		cfg:     cfg,
		metrics: metrics,
		logger:  slog.With("component", "downloader"),
	}
}

// Download fetches the manifest, then every listed file into destDir.
// It returns only after every dispatched task has been joined. A missing or
// empty URL list is a hard failure; per-file failures are collected in the
// Result and optionally retried once.
func (d *Downloader) Download(ctx context.Context, manifestURL, destDir, jobID string) (*Result, error) {
	man, err := d.fetchManifest(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	d.logger.Info("Starting bulk download",
		"files", len(man.URLList),
		"totalBytes", man.TotalFileSizeBytes,
		"concurrency", d.cfg.Concurrency,
		"dest", destDir,
	)

	failures := d.fetchAll(ctx, man.URLList, destDir, jobID)

	if d.cfg.RetryFailed && len(failures) > 0 && ctx.Err() == nil {
		retry := make([]string, 0, len(failures))
		for _, f := range failures {
			retry = append(retry, f.URL)
		}
		d.logger.Warn("Retrying failed downloads", "count", len(retry))
		failures = d.fetchAll(ctx, retry, destDir, jobID)
	}

	res := &Result{
		TotalFiles:        len(man.URLList),
		Written:           len(man.URLList) - len(failures),
		Failures:          failures,
		SuspectMinutesURL: man.SuspectMinutesURL,
	}
	d.logger.Info("Bulk download complete", "written", res.Written, "failed", len(res.Failures))
	return res, nil
}

// fetchAll dispatches one fetch-and-write task per URL. At most Concurrency
// tasks are in flight at once: admission blocks on the semaphore channel,
// and every task is joined before returning.
func (d *Downloader) fetchAll(ctx context.Context, urls []string, destDir, jobID string) []Failure {
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var failures []Failure
	record := func(u string, err error) {
		mu.Lock()
		failures = append(failures, Failure{URL: u, Err: err})
		mu.Unlock()
	}

	var written atomic.Int64
	total := len(urls)
	for start := 0; start < total; start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, total)
		if start > 0 {
			d.logger.Info("Download progress", "dispatched", start, "of", total, "written", written.Load())
		}
		for _, u := range urls[start:end] {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				record(u, ctx.Err())
				continue
			}
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := d.fetchOne(ctx, u, destDir, jobID); err != nil {
					d.logger.Warn("Download failed", "url", u, "error", err)
					record(u, err)
					return
				}
				written.Add(1)
			}(u)
		}
	}

	wg.Wait()
	return failures
}

// fetchOne streams a single result file to its derived destination path.
func (d *Downloader) fetchOne(ctx context.Context, rawURL, destDir, jobID string) error {
	name, err := TargetFilename(rawURL, jobID)
	if err != nil {
		return err
	}

	breaker := d.breakers.Get(hostOf(rawURL))
	if !breaker.Allow() {
		return fmt.Errorf("circuit open for %s", hostOf(rawURL))
	}

	if d.metrics != nil {
		d.metrics.RecordDownloadStarted(ctx)
	}
	start := time.Now()
	n, err := d.fetchToFile(ctx, rawURL, filepath.Join(destDir, name))
	if d.metrics != nil {
		d.metrics.RecordDownloadFinished(ctx, err == nil, n, time.Since(start).Seconds())
	}

	if err != nil {
		breaker.RecordFailure()
		return err
	}
	breaker.RecordSuccess()
	return nil
}

func (d *Downloader) fetchToFile(ctx context.Context, rawURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return written, fmt.Errorf("failed to sync file: %w", err)
	}

	d.logger.Debug("Downloaded file", "bytes", written, "path", destPath)
	return written, nil
}

func (d *Downloader) fetchManifest(ctx context.Context, manifestURL string) (*manifest, error) {
	code, body, err := d.api.Get(ctx, manifestURL)
	if err != nil {
		return nil, apperrors.Manifest("downloader.manifest", err)
	}
	if code < 200 || code >= 300 {
		return nil, apperrors.Manifest("downloader.manifest", fmt.Errorf("manifest request returned HTTP %d", code))
	}

	var man manifest
	if err := json.Unmarshal(body, &man); err != nil {
		return nil, apperrors.Manifest("downloader.manifest", err)
	}
	if len(man.URLList) == 0 {
		return nil, apperrors.Manifest("downloader.manifest", errors.New("manifest urlList is empty"))
	}
	return &man, nil
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return parsed.Host
}

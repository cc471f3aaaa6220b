// Package retrieval finalizes a completed download: it persists the
// suspect-minutes diagnostics the provider publishes alongside the result
// files and inflates the compressed outputs.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"extractor/internal/archive"
)

// SuspectMinutesFile is the name the diagnostics document is stored under
// inside the job's output directory.
const SuspectMinutesFile = "suspect_minutes.json"

// Getter fetches a resource from the extraction API.
type Getter interface {
	Get(ctx context.Context, url string) (int, []byte, error)
}

// Finisher runs the best-effort post-download steps.
type Finisher struct {
	api    Getter
	logger *slog.Logger
}

func NewFinisher(api Getter) *Finisher {
	return &Finisher{
		api:    api,
		logger: slog.With("component", "retrieval"),
	}
}

// Finish fetches the suspect-minutes document when the manifest advertised
// one, then decompresses every archive in destDir. Neither step aborts the
// other; all failures come back aggregated. An empty suspectMinutesURL means
// the provider published no diagnostics and is not an error.
func (f *Finisher) Finish(ctx context.Context, destDir, suspectMinutesURL string) (int, error) {
	var errs *multierror.Error

	if suspectMinutesURL != "" {
		if err := f.saveSuspectMinutes(ctx, destDir, suspectMinutesURL); err != nil {
			f.logger.Warn("Suspect minutes fetch failed", "url", suspectMinutesURL, "error", err)
			errs = multierror.Append(errs, err)
		}
	}

	inflated, err := archive.DecompressDir(ctx, destDir)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return inflated, errs.ErrorOrNil()
}

func (f *Finisher) saveSuspectMinutes(ctx context.Context, destDir, url string) error {
	code, body, err := f.api.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch suspect minutes: %w", err)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("suspect minutes request returned HTTP %d", code)
	}

	path := filepath.Join(destDir, SuspectMinutesFile)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write suspect minutes: %w", err)
	}
	f.logger.Info("Saved suspect minutes", "path", path, "bytes", len(body))
	return nil
}

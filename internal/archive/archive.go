// Package archive decompresses the gzip result files a finished job leaves
// in its output directory.
package archive

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const gzipExt = ".gz"

// DecompressDir inflates every .gz file directly under dir, writing each
// result next to its source with the extension stripped and removing the
// source on success. Failures are collected per file; the count of files
// successfully inflated is always returned.
func DecompressDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	logger := slog.With("component", "archive")

	var errs *multierror.Error
	inflated := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), gzipExt) {
			continue
		}
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}

		srcPath := filepath.Join(dir, entry.Name())
		destPath := strings.TrimSuffix(srcPath, gzipExt)
		if err := decompressFile(srcPath, destPath); err != nil {
			logger.Warn("Decompression failed", "file", entry.Name(), "error", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		inflated++
	}

	logger.Info("Decompressed output files", "dir", dir, "inflated", inflated)
	return inflated, errs.ErrorOrNil()
}

func decompressFile(srcPath, destPath string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(outFile, gzReader); err != nil {
		outFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to inflate file: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return os.Remove(srcPath)
}

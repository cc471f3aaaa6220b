package downloader

import (
	"fmt"
	"net/url"
	"strings"
)

// compressedMarker is the extension the server appends to every result file.
const compressedMarker = ".gz"

// TargetFilename derives the flat local filename for one signed result URL:
// the URL path from the job identifier through the compressed-file marker,
// with path separators replaced by underscores. The signed query string is
// ignored.
//
// The identifier must appear exactly once in the path; deriving a name from
// an ambiguous or identifier-less URL would mis-slice, so both cases are
// errors rather than guesses.
func TargetFilename(rawURL, jobID string) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job identifier is empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unparseable result URL %q: %w", rawURL, err)
	}
	p := parsed.Path

	idx := strings.Index(p, jobID)
	if idx < 0 {
		return "", fmt.Errorf("job identifier %q not present in result URL path %q", jobID, p)
	}
	if strings.Contains(p[idx+len(jobID):], jobID) {
		return "", fmt.Errorf("job identifier %q appears more than once in result URL path %q", jobID, p)
	}

	end := len(p)
	if markerIdx := strings.Index(p[idx:], compressedMarker); markerIdx >= 0 {
		end = idx + markerIdx + len(compressedMarker)
	}

	name := strings.ReplaceAll(p[idx:end], "/", "_")
	if name == "" {
		return "", fmt.Errorf("derived an empty filename from %q", rawURL)
	}
	return name, nil
}

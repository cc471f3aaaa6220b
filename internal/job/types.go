// Package job models one bulk historical extraction request and drives it
// through the server-side workflow: submission, estimation, quoting,
// acceptance, execution, and completion.
package job

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"extractor/internal/apperrors"
	"extractor/internal/rules"
)

// Lifecycle states, normalized from the server's loosely-typed status strings.
const (
	StateNew        = "new"        // never submitted: title absent from the job list
	StateEstimating = "estimating" // submitted, server computing the quote
	StateQuoted     = "quoted"     // quote available, awaiting accept/reject
	StateAccepted   = "accepted"   // quote accepted, execution pending
	StateRejected   = "rejected"   // quote rejected, terminal
	StateRunning    = "running"    // executing
	StateFinished   = "finished"   // results available, terminal
	StateUnknown    = "unknown"    // payload could not be classified
)

// DateFormat is the wire format for the extraction window bounds.
const DateFormat = "200601021504"

// Defaults for the classification fields.
const (
	DefaultPublisher  = "twitter"
	DefaultStreamType = "track"
	DefaultDataFormat = "activity-streams"
)

// Job identifies one extraction request. The server assigns the identifier
// only after submission, so the title is the correlation key until then.
type Job struct {
	Title      string
	FromDate   time.Time
	ToDate     time.Time
	Publisher  string
	StreamType string
	DataFormat string
	Rules      *rules.Set

	identifier string
}

// ApplyDefaults fills unset classification fields.
func (j *Job) ApplyDefaults() {
	if j.Publisher == "" {
		j.Publisher = DefaultPublisher
	}
	if j.StreamType == "" {
		j.StreamType = DefaultStreamType
	}
	if j.DataFormat == "" {
		j.DataFormat = DefaultDataFormat
	}
}

// Validate checks the job description before submission.
func (j *Job) Validate() error {
	if j.Title == "" {
		return apperrors.Validation("title", "job title is required")
	}
	if j.FromDate.IsZero() || j.ToDate.IsZero() {
		return apperrors.Validation("dates", "extraction window bounds are required")
	}
	if !j.FromDate.Before(j.ToDate) {
		return apperrors.Validation("dates", "fromDate must precede toDate")
	}
	if j.Rules == nil || j.Rules.Len() == 0 {
		return apperrors.Validation("rules", "at least one rule is required")
	}
	return nil
}

// Identifier returns the server-assigned identifier, empty before submission
// has been confirmed.
func (j *Job) Identifier() string {
	return j.identifier
}

// SetIdentifier records the server-assigned identifier. It is set once;
// a conflicting second assignment is an error.
func (j *Job) SetIdentifier(id string) error {
	if id == "" {
		return apperrors.Validation("identifier", "identifier must not be empty")
	}
	if j.identifier != "" && j.identifier != id {
		return apperrors.Validation("identifier", "identifier already set to "+j.identifier)
	}
	j.identifier = id
	return nil
}

// SubmissionPayload serializes the job description for POST to the account
// jobs endpoint.
func (j *Job) SubmissionPayload() ([]byte, error) {
	return json.Marshal(struct {
		Title      string       `json:"title"`
		FromDate   string       `json:"fromDate"`
		ToDate     string       `json:"toDate"`
		Publisher  string       `json:"publisher"`
		StreamType string       `json:"streamType"`
		DataFormat string       `json:"dataFormat"`
		Rules      []rules.Rule `json:"rules"`
	}{
		Title:      j.Title,
		FromDate:   j.FromDate.UTC().Format(DateFormat),
		ToDate:     j.ToDate.UTC().Format(DateFormat),
		Publisher:  j.Publisher,
		StreamType: j.StreamType,
		DataFormat: j.DataFormat,
		Rules:      j.Rules.Rules(),
	})
}

// Quote is the server-computed estimate that must be accepted before
// execution begins.
type Quote struct {
	CostDollars            float64 `json:"costDollars"`
	EstimatedActivityCount int64   `json:"estimatedActivityCount"`
	EstimatedDurationHours float64 `json:"estimatedDurationHours"`
	EstimatedFileSizeMB    float64 `json:"estimatedFileSizeMb"`
	ExpiresAt              string  `json:"expiresAt"`
}

// Results describes a finished job's output set.
type Results struct {
	ActivityCount int64   `json:"activityCount"`
	FileCount     int     `json:"fileCount"`
	FileSizeMB    float64 `json:"fileSizeMb"`
	CompletedAt   string  `json:"completedAt"`
	DataURL       string  `json:"dataURL"`
	ExpiresAt     string  `json:"expiresAt"`
}

// Status is the normalized view of a job's lifecycle stage. It is re-derived
// from scratch on every poll, never mutated incrementally.
type Status struct {
	Name            string
	PercentComplete int
	Message         string
	Quote           *Quote
	Results         *Results
	// JobURL is the canonical single-job endpoint, known once the job has
	// been located in the account job list.
	JobURL string
}

// IdentifierFromURL extracts the job identifier from a canonical job URL:
// the trailing path segment stripped of its file extension.
func IdentifierFromURL(jobURL string) string {
	parsed, err := url.Parse(jobURL)
	if err != nil {
		return ""
	}
	seg := path.Base(parsed.Path)
	if seg == "." || seg == "/" {
		return ""
	}
	return strings.TrimSuffix(seg, path.Ext(seg))
}

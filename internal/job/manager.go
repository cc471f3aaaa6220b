package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"extractor/internal/apperrors"
	"extractor/internal/client"
)

// Transport is the injected REST capability the manager drives the remote
// workflow through. Implementations attach authentication per request and
// return the raw status code and body; any 2xx code is success.
type Transport interface {
	Get(ctx context.Context, url string) (statusCode int, body []byte, err error)
	Post(ctx context.Context, url string, body []byte) (statusCode int, respBody []byte, err error)
	Put(ctx context.Context, url string, body []byte) (statusCode int, respBody []byte, err error)
}

// MetricsRecorder is an optional interface for recording lifecycle metrics.
type MetricsRecorder interface {
	RecordPoll(ctx context.Context, state string)
}

// submitConfirmAttempts bounds the wait for a submitted job to appear in
// the account list. Confirmation normally takes seconds.
const submitConfirmAttempts = 30

// ManagerConfig scopes one manager to one job run. Nothing here is shared
// as ambient state across instances.
type ManagerConfig struct {
	// JobsURL is the account job-list endpoint, also the submission target.
	JobsURL string
	// SubmitInterval is the short poll while confirming submission.
	SubmitInterval time.Duration
	// QuoteInterval is the poll while the server estimates the job.
	QuoteInterval time.Duration
	// RunInterval is the poll while the job executes. Execution is measured
	// in hours; an aggressive interval wastes quota without improving
	// responsiveness.
	RunInterval time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.SubmitInterval <= 0 {
		c.SubmitInterval = 10 * time.Second
	}
	if c.QuoteInterval <= 0 {
		c.QuoteInterval = 2 * time.Minute
	}
	if c.RunInterval <= 0 {
		c.RunInterval = 5 * time.Minute
	}
	return c
}

// Manager drives one job through the remote workflow. It is single-threaded
// and level-triggered: every iteration re-derives the full status from the
// server rather than trusting local memory, because the remote job record is
// the only source of truth and the process may be restarted between polls.
type Manager struct {
	transport Transport
	job       *Job
	cfg       ManagerConfig
	metrics   MetricsRecorder
	logger    *slog.Logger

	jobURL string
}

// NewManager creates a manager for one job.
func NewManager(transport Transport, j *Job, cfg ManagerConfig, metrics MetricsRecorder) *Manager {
	return &Manager{
		transport: transport,
		job:       j,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
		logger:    slog.With("component", "manager", "title", j.Title),
	}
}

// Job returns the managed job.
func (m *Manager) Job() *Job {
	return m.job
}

// Manage runs the lifecycle to a terminal state and returns the final
// status. On a recoverable acceptance failure the returned status is still
// quoted and the error matches apperrors.ErrAcceptance; re-running Manage
// later retries acceptance from the re-derived state.
func (m *Manager) Manage(ctx context.Context) (*Status, error) {
	st, err := m.pollList(ctx)
	if err != nil {
		return nil, err
	}

	if st.Name == StateNew {
		if err := m.submit(ctx); err != nil {
			return nil, err
		}
		if st, err = m.awaitListing(ctx); err != nil {
			return nil, err
		}
	}

	if st.Name == StateUnknown {
		return &st, apperrors.UnknownStatus(m.job.Title)
	}
	if st.JobURL == "" {
		return &st, fmt.Errorf("job list entry for %q carries no job URL", m.job.Title)
	}
	m.jobURL = st.JobURL
	if err := m.job.SetIdentifier(IdentifierFromURL(st.JobURL)); err != nil {
		return &st, err
	}
	m.logger = m.logger.With("jobId", m.job.Identifier())
	m.logger.Info("Tracking job", "state", st.Name)

	// accepted guards the irreversible transition: once the server has
	// answered 2xx to the accept PUT, a stale quoted observation means the
	// server has not caught up yet, and the PUT must not be re-sent.
	accepted := false

	for {
		switch st.Name {
		case StateQuoted:
			if accepted {
				if err := sleep(ctx, m.cfg.QuoteInterval); err != nil {
					return &st, err
				}
				break
			}
			if st.Quote == nil {
				// The list shape omits the quote; fetch the full job
				// document before presenting and deciding.
				full, err := m.pollJob(ctx)
				if err != nil {
					return &st, err
				}
				if full.Name != StateQuoted {
					st = full
					continue
				}
				st = full
			}
			m.presentQuote(st.Quote)
			if err := m.Accept(ctx); err != nil {
				m.logger.Warn("Acceptance failed, job remains quoted", "error", err)
				return &st, err
			}
			accepted = true
			m.logger.Info("Quote accepted")

		case StateRejected:
			m.logger.Info("Quote rejected, job will not run")
			return &st, nil

		case StateFinished:
			if st.Results == nil {
				// The list shape omits results; fetch the full job document.
				full, err := m.pollJob(ctx)
				if err != nil {
					return nil, err
				}
				if full.Name != StateFinished || full.Results == nil {
					return &full, apperrors.UnknownStatus(m.job.Title)
				}
				st = full
			}
			m.logger.Info("Job finished",
				"activities", st.Results.ActivityCount,
				"files", st.Results.FileCount,
				"sizeMb", st.Results.FileSizeMB,
			)
			return &st, nil

		case StateUnknown:
			return &st, apperrors.UnknownStatus(m.job.Title)

		default:
			// new, estimating, accepted, running: wait and re-derive.
			if err := sleep(ctx, m.interval(st.Name)); err != nil {
				return &st, err
			}
		}

		next, err := m.pollJob(ctx)
		if err != nil {
			return &st, err
		}
		st = next
	}
}

// Accept issues the irreversible accept transition for a quoted job.
// It is not retried here: a non-2xx response surfaces as a recoverable
// apperrors.ErrAcceptance so the caller can decide to retry later.
func (m *Manager) Accept(ctx context.Context) error {
	return m.decideQuote(ctx, "accept")
}

// Reject declines the quote. Never called by the automated flow; exposed
// for callers with the same HTTP contract as Accept.
func (m *Manager) Reject(ctx context.Context) error {
	return m.decideQuote(ctx, "reject")
}

func (m *Manager) decideQuote(ctx context.Context, decision string) error {
	if m.jobURL == "" {
		return apperrors.Validation("jobURL", "quote decision requires a located job")
	}
	code, _, err := m.transport.Put(ctx, m.jobURL, []byte(`{"status":"`+decision+`"}`))
	if err != nil {
		return err
	}
	if !client.Success(code) {
		return apperrors.Acceptance(code)
	}
	return nil
}

// submit POSTs the job description. Any non-2xx response is fatal to the run.
func (m *Manager) submit(ctx context.Context) error {
	payload, err := m.job.SubmissionPayload()
	if err != nil {
		return err
	}

	m.logger.Info("Submitting job",
		"from", m.job.FromDate.UTC().Format(DateFormat),
		"to", m.job.ToDate.UTC().Format(DateFormat),
		"rules", m.job.Rules.Len(),
	)

	code, body, err := m.transport.Post(ctx, m.cfg.JobsURL, payload)
	if err != nil {
		return err
	}
	if !client.Success(code) {
		return apperrors.Submission(code, truncate(string(body), 200))
	}
	return nil
}

// awaitListing polls the account list until the submitted title appears.
func (m *Manager) awaitListing(ctx context.Context) (Status, error) {
	for attempt := 1; attempt <= submitConfirmAttempts; attempt++ {
		if err := sleep(ctx, m.cfg.SubmitInterval); err != nil {
			return Status{}, err
		}
		st, err := m.pollList(ctx)
		if err != nil {
			return Status{}, err
		}
		if st.Name != StateNew {
			return st, nil
		}
		m.logger.Debug("Submission not yet visible", "attempt", attempt)
	}
	return Status{}, fmt.Errorf("job %q did not appear in the account list after submission", m.job.Title)
}

func (m *Manager) pollList(ctx context.Context) (Status, error) {
	code, body, err := m.transport.Get(ctx, m.cfg.JobsURL)
	if err != nil {
		return Status{}, err
	}
	if !client.Success(code) {
		return Status{}, fmt.Errorf("job list request returned HTTP %d", code)
	}
	st := Classify(body, m.job.Title)
	m.recordPoll(ctx, st.Name)
	return st, nil
}

func (m *Manager) pollJob(ctx context.Context) (Status, error) {
	code, body, err := m.transport.Get(ctx, m.jobURL)
	if err != nil {
		return Status{}, err
	}
	if !client.Success(code) {
		return Status{}, fmt.Errorf("job status request returned HTTP %d", code)
	}
	st := Classify(body, m.job.Title)
	st.JobURL = m.jobURL
	m.recordPoll(ctx, st.Name)
	m.logger.Info("Job status", "state", st.Name, "percent", st.PercentComplete, "message", st.Message)
	return st, nil
}

func (m *Manager) presentQuote(q *Quote) {
	if q == nil {
		m.logger.Warn("Job quoted but no quote details present")
		return
	}
	m.logger.Info("Quote received",
		"costDollars", q.CostDollars,
		"estimatedActivities", q.EstimatedActivityCount,
		"estimatedDurationHours", q.EstimatedDurationHours,
		"estimatedSizeMb", q.EstimatedFileSizeMB,
		"expiresAt", q.ExpiresAt,
	)
}

func (m *Manager) interval(state string) time.Duration {
	switch state {
	case StateNew, StateEstimating:
		return m.cfg.QuoteInterval
	default:
		return m.cfg.RunInterval
	}
}

func (m *Manager) recordPoll(ctx context.Context, state string) {
	if m.metrics != nil {
		m.metrics.RecordPoll(ctx, state)
	}
}

// sleep waits for d or until the context is cancelled. Jobs run for hours,
// so every wait must be interruptible.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

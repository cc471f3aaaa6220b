package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"extractor/internal/apperrors"
	"extractor/internal/testutil"
)

const testJobURL = "https://historical.example.com/accounts/acme/jobs/abc123.json"

// scriptedAPI simulates the remote workflow: the job list only shows the
// job after submission, the quote only clears after acceptance.
type scriptedAPI struct {
	mu        sync.Mutex
	submitted bool
	accepted  bool
	jobPolls  int

	failSubmit int // non-zero: status code returned for POST
	failAccept int // non-zero: status code returned for PUT
	unknownJob bool
	acceptLag  int    // job polls that still report quoted after a 2xx accept
	listState  string // list entry status, default "estimating"

	order []string // "list", "job", "submit", "accept"
}

func (s *scriptedAPI) Get(_ context.Context, url string) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasSuffix(url, "/jobs.json") {
		s.order = append(s.order, "list")
		if !s.submitted {
			return 200, []byte(`{"jobs":[]}`), nil
		}
		state := s.listState
		if state == "" {
			state = "estimating"
		}
		return 200, []byte(fmt.Sprintf(
			`{"jobs":[{"title":"Test","status":%q,"percentComplete":5,"jobURL":%q}]}`,
			state, testJobURL)), nil
	}

	s.order = append(s.order, "job")
	s.jobPolls++
	if s.unknownJob {
		return 200, []byte(`{"title":"Test","status":"transmogrifying"}`), nil
	}
	if s.accepted && s.acceptLag > 0 {
		// Eventual consistency: the accept succeeded but the job document
		// has not caught up yet.
		s.acceptLag--
		return 200, []byte(`{"title":"Test","status":"quoted"}`), nil
	}
	if !s.accepted {
		return 200, []byte(`{"title":"Test","status":"quoted",
			"quote":{"costDollars":100,"estimatedActivityCount":5000,
			"estimatedDurationHours":24,"estimatedFileSizeMb":10,"expiresAt":"soon"}}`), nil
	}
	if s.jobPolls < 3 {
		return 200, []byte(`{"title":"Test","status":"running","percentComplete":41}`), nil
	}
	return 200, []byte(`{"title":"Test","status":"running",
		"results":{"activityCount":5000,"fileCount":65,"fileSizeMb":10,
		"completedAt":"done","dataURL":"https://historical.example.com/accounts/acme/jobs/abc123/results.json"}}`), nil
}

func (s *scriptedAPI) Post(_ context.Context, url string, body []byte) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "submit")
	if s.failSubmit != 0 {
		return s.failSubmit, []byte("rejected"), nil
	}
	s.submitted = true
	return 201, nil, nil
}

func (s *scriptedAPI) Put(_ context.Context, url string, body []byte) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "accept")
	if s.failAccept != 0 {
		return s.failAccept, nil, nil
	}
	s.accepted = true
	return 200, nil, nil
}

func fastConfig() ManagerConfig {
	return ManagerConfig{
		JobsURL:        "https://historical.example.com/accounts/acme/jobs.json",
		SubmitInterval: time.Millisecond,
		QuoteInterval:  time.Millisecond,
		RunInterval:    time.Millisecond,
	}
}

func TestManage_FullLifecycle(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{}
	m := NewManager(api, testJob(t), fastConfig(), nil)
	m.job.Title = "Test"
	m.logger = m.logger.With("test", t.Name())

	st, err := m.Manage(context.Background())
	if err != nil {
		t.Fatalf("Manage failed: %v", err)
	}

	if st.Name != StateFinished {
		t.Errorf("expected finished, got %s", st.Name)
	}
	if st.Results == nil || st.Results.FileCount != 65 {
		t.Errorf("expected results with 65 files, got %+v", st.Results)
	}
	if m.job.Identifier() != "abc123" {
		t.Errorf("expected identifier abc123, got %q", m.job.Identifier())
	}

	// Acceptance must come after a quoted observation, submission before
	// any single-job poll.
	accept := indexOf(api.order, "accept")
	firstJobPoll := indexOf(api.order, "job")
	submit := indexOf(api.order, "submit")
	if accept == -1 || firstJobPoll == -1 || submit == -1 {
		t.Fatalf("missing calls in order: %v", api.order)
	}
	if accept < firstJobPoll {
		t.Errorf("accept issued before observing the quoted job: %v", api.order)
	}
	if submit > firstJobPoll {
		t.Errorf("submission after job polling: %v", api.order)
	}
}

func TestManage_ResumesExistingJob(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	st, err := m.Manage(context.Background())
	if err != nil {
		t.Fatalf("Manage failed: %v", err)
	}
	if st.Name != StateFinished {
		t.Errorf("expected finished, got %s", st.Name)
	}
	if indexOf(api.order, "submit") != -1 {
		t.Error("an already-listed job must not be re-submitted")
	}
}

func TestManage_SubmissionFailureIsFatal(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{failSubmit: 422}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	_, err := m.Manage(context.Background())
	if !errors.Is(err, apperrors.ErrSubmission) {
		t.Errorf("expected ErrSubmission, got %v", err)
	}
	if apperrors.IsFatal(err) != true {
		t.Error("submission failure must be fatal")
	}
}

func TestManage_AcceptanceFailureStaysQuoted(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true, failAccept: 403}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	st, err := m.Manage(context.Background())
	if !errors.Is(err, apperrors.ErrAcceptance) {
		t.Fatalf("expected ErrAcceptance, got %v", err)
	}
	if st == nil || st.Name != StateQuoted {
		t.Errorf("job must remain quoted after a failed acceptance, got %+v", st)
	}
	if apperrors.IsFatal(err) {
		t.Error("acceptance failure must be recoverable")
	}
	if api.accepted {
		t.Error("job must not be marked accepted")
	}
}

func TestManage_AcceptSentOnceDespiteLaggingServer(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true, acceptLag: 3}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	st, err := m.Manage(context.Background())
	if err != nil {
		t.Fatalf("Manage failed: %v", err)
	}
	if st.Name != StateFinished {
		t.Errorf("expected finished, got %s", st.Name)
	}

	// The accept transition is irreversible: observing quoted again after a
	// 2xx accept means the server is catching up, not that acceptance is due.
	if got := countOf(api.order, "accept"); got != 1 {
		t.Errorf("expected exactly one accept, got %d (order: %v)", got, api.order)
	}
}

func TestManage_FetchesQuoteBeforeAcceptingListedJob(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true, listState: "quoted"}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	st, err := m.Manage(context.Background())
	if err != nil {
		t.Fatalf("Manage failed: %v", err)
	}
	if st.Name != StateFinished {
		t.Errorf("expected finished, got %s", st.Name)
	}

	// The list entry carries no quote details, so the full job document must
	// be polled before the quote is presented and accepted.
	accept := indexOf(api.order, "accept")
	firstJobPoll := indexOf(api.order, "job")
	if accept == -1 || firstJobPoll == -1 {
		t.Fatalf("missing calls in order: %v", api.order)
	}
	if firstJobPoll > accept {
		t.Errorf("accepted without fetching the quote first: %v", api.order)
	}
}

func TestManage_UnknownStatusHalts(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true, unknownJob: true}
	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, fastConfig(), nil)

	_, err := m.Manage(context.Background())
	if !errors.Is(err, apperrors.ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}

	// The manager must halt, not spin: a bounded number of polls.
	if api.jobPolls > 1 {
		t.Errorf("expected a single job poll before halting, got %d", api.jobPolls)
	}
}

func TestManage_CancellationInterruptsWait(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{submitted: true, accepted: true}
	cfg := fastConfig()
	cfg.RunInterval = time.Hour // cancellation must not wait this out

	j := testJob(t)
	j.Title = "Test"
	m := NewManager(api, j, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var done atomic.Bool
	var mErr error
	go func() {
		_, mErr = m.Manage(ctx)
		done.Store(true)
	}()

	testutil.MustWaitFor(t, done.Load, testutil.WithTimeout(5*time.Second))
	if !errors.Is(mErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", mErr)
	}
}

func TestReject_RequiresLocatedJob(t *testing.T) {
	t.Parallel()
	m := NewManager(&scriptedAPI{}, testJob(t), fastConfig(), nil)
	if err := m.Reject(context.Background()); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error before the job is located, got %v", err)
	}
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if s == target {
			return i
		}
	}
	return -1
}

func countOf(ss []string, target string) int {
	n := 0
	for _, s := range ss {
		if s == target {
			n++
		}
	}
	return n
}

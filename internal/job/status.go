package job

import (
	"encoding/json"
	"strings"
)

// The two payload shapes the status endpoints return share field names, so
// shape is decided structurally: the presence of a top-level "jobs"
// collection marks a job-list document and is checked first. Anything that
// fits neither shape classifies as unknown; Classify never errors.

type listEntry struct {
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	PercentComplete float64 `json:"percentComplete"`
	StatusMessage   string  `json:"statusMessage"`
	JobURL          string  `json:"jobURL"`
}

type singleDoc struct {
	Status          string   `json:"status"`
	PercentComplete float64  `json:"percentComplete"`
	StatusMessage   string   `json:"statusMessage"`
	Quote           *Quote   `json:"quote"`
	Results         *Results `json:"results"`
}

var knownStates = map[string]bool{
	StateNew:        true,
	StateEstimating: true,
	StateQuoted:     true,
	StateAccepted:   true,
	StateRejected:   true,
	StateRunning:    true,
	StateFinished:   true,
}

// Classify derives a normalized Status from a raw job-list or single-job
// response body. Pure: no I/O, no retained state, identical input yields
// identical output.
func Classify(raw []byte, title string) Status {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Status{Name: StateUnknown}
	}

	if jobsRaw, ok := probe["jobs"]; ok {
		return classifyList(jobsRaw, title)
	}
	return classifySingle(raw)
}

// classifyList scans the account job list for the target title. A title
// absent from the list means the job has never been submitted.
func classifyList(jobsRaw []byte, title string) Status {
	var entries []listEntry
	if err := json.Unmarshal(jobsRaw, &entries); err != nil {
		return Status{Name: StateUnknown}
	}

	for _, e := range entries {
		if e.Title != title {
			continue
		}
		return Status{
			Name:            normalizeState(e.Status),
			PercentComplete: int(e.PercentComplete),
			Message:         e.StatusMessage,
			JobURL:          e.JobURL,
		}
	}
	return Status{Name: StateNew}
}

// classifySingle reads a single-job document. A results section is the
// authoritative completion signal and overrides a possibly-stale status
// string.
func classifySingle(raw []byte) Status {
	var doc singleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Status{Name: StateUnknown}
	}

	st := Status{
		Name:            normalizeState(doc.Status),
		PercentComplete: int(doc.PercentComplete),
		Message:         doc.StatusMessage,
		Quote:           doc.Quote,
		Results:         doc.Results,
	}
	if doc.Results != nil {
		st.Name = StateFinished
	}
	return st
}

func normalizeState(raw string) string {
	state := strings.ToLower(strings.TrimSpace(raw))
	if knownStates[state] {
		return state
	}
	return StateUnknown
}

package history

import (
	"time"

	"github.com/maxvaer/apiprobe/internal/probe"
)

// Entry is one stored result. Only the redacted URL is kept.
type Entry struct {
	Index      int           `json:"index"`
	Key        string        `json:"key"`
	Path       string        `json:"path"`
	Params     []probe.Param `json:"params,omitempty"`
	Encoding   string        `json:"encoding"`
	URL        string        `json:"url"`
	Status     int           `json:"status"`
	Kind       probe.Kind    `json:"kind"`
	Size       int64         `json:"size"`
	Truncated  bool          `json:"truncated,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Success    bool          `json:"success"`
	Marker     string        `json:"marker,omitempty"`
	Fault      string        `json:"fault,omitempty"`
	FaultKind  string        `json:"fault_kind,omitempty"`
	Snippet    string        `json:"snippet"`
}

// Record is a stored sweep.
type Record struct {
	ID         uint64    `json:"id"`
	BaseHost   string    `json:"base_host"`
	Workers    int       `json:"workers"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Entries    []Entry   `json:"entries"`
}

// Summary is the one-line form of a record used by listings.
type Summary struct {
	ID        uint64
	BaseHost  string
	StartedAt time.Time
	Total     int
	Succeeded int
	Faults    int
}

// NewRecord converts report into a storable record. Verdicts are computed
// now so a later change of markers does not rewrite history.
func NewRecord(report *probe.Report, policy *probe.Policy) *Record {
	if policy == nil {
		policy = probe.DefaultPolicy()
	}
	rec := &Record{
		BaseHost:   report.BaseHost,
		Workers:    report.Workers,
		StartedAt:  report.StartedAt,
		DurationMS: report.Duration.Milliseconds(),
		Entries:    make([]Entry, 0, len(report.Results)),
	}
	for i := range report.Results {
		r := &report.Results[i]
		e := Entry{
			Index:      r.Index,
			Key:        r.Candidate.Key(),
			Path:       r.Candidate.Path,
			Params:     r.Candidate.Params,
			Encoding:   string(r.Candidate.Encoding),
			URL:        r.URL,
			Status:     r.StatusCode,
			Kind:       r.Kind,
			Size:       r.ContentLength,
			Truncated:  r.Truncated,
			DurationMS: r.Duration.Milliseconds(),
			Success:    policy.Success(r),
			Marker:     policy.Marker(r),
			Snippet:    r.Snippet,
		}
		if e.Encoding == "" {
			e.Encoding = string(probe.EncodingDefault)
		}
		if r.Err != nil {
			e.Fault = r.Err.Error()
			e.FaultKind = r.Err.Kind.String()
		}
		rec.Entries = append(rec.Entries, e)
	}
	return rec
}

// Summary returns the record's counts.
func (r *Record) Summary() Summary {
	s := Summary{ID: r.ID, BaseHost: r.BaseHost, StartedAt: r.StartedAt, Total: len(r.Entries)}
	for _, e := range r.Entries {
		if e.Success {
			s.Succeeded++
		}
		if e.Fault != "" {
			s.Faults++
		}
	}
	return s
}

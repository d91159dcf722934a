package probe

import "time"

// Kind is the coarse structure of a response body.
type Kind string

const (
	KindJSON    Kind = "json"
	KindXML     Kind = "xml"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

// Result holds the outcome of probing one candidate.
type Result struct {
	Index         int // position of Candidate in the submitted list
	Candidate     Candidate
	URL           string // credential redacted
	StatusCode    int    // 0 when the request failed before a response
	Kind          Kind
	Snippet       string
	ContentType   string
	ContentLength int64  // decoded body bytes read
	Truncated     bool   // body exceeded the read limit; Kind was sniffed
	Marker        string // service rejection found in the full body
	Duration      time.Duration
	Err           *TransportFault
}

// HasStatus reports whether a response was received.
func (r *Result) HasStatus() bool { return r.StatusCode != 0 }

// Report is the outcome of one sweep.
type Report struct {
	BaseHost  string
	Workers   int
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
}

// Concurrent reports whether the sweep ran with more than one worker, in
// which case Results is not in submission order.
func (r *Report) Concurrent() bool { return r.Workers > 1 }

// Successes returns the results accepted by policy.
func (r *Report) Successes(policy *Policy) []Result {
	var out []Result
	for _, res := range r.Results {
		if policy.Success(&res) {
			out = append(out, res)
		}
	}
	return out
}

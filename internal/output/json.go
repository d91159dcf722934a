package output

import (
	"encoding/json"
	"io"

	"github.com/maxvaer/apiprobe/internal/probe"
)

type jsonFault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type jsonEntry struct {
	Index       int           `json:"index"`
	Path        string        `json:"path"`
	Params      []probe.Param `json:"params"`
	Encoding    string        `json:"encoding"`
	URL         string        `json:"url"`
	Status      *int          `json:"status"`
	Kind        probe.Kind    `json:"kind"`
	ContentType string        `json:"content_type,omitempty"`
	Size        int64         `json:"size"`
	Truncated   bool          `json:"truncated,omitempty"`
	DurationMS  int64         `json:"duration_ms"`
	Success     bool          `json:"success"`
	Marker      string        `json:"error_marker,omitempty"`
	Snippet     string        `json:"snippet"`
	Error       *jsonFault    `json:"error"`
}

type jsonStats struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Faults     int   `json:"faults"`
	DurationMS int64 `json:"duration_ms"`
}

type jsonReport struct {
	Results []jsonEntry `json:"results"`
	Stats   jsonStats   `json:"stats"`
}

// JSONWriter buffers results and writes one JSON document at the end.
// Hidden results are not buffered; the stats still count them.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	policy  *probe.Policy
	entries []jsonEntry
}

// NewJSONWriter creates a JSON output writer.
func NewJSONWriter(outputFile string, policy *probe.Policy) (*JSONWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = probe.DefaultPolicy()
	}
	return &JSONWriter{w: w, closer: closer, policy: policy, entries: []jsonEntry{}}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(result *probe.Result) error {
	entry := jsonEntry{
		Index:       result.Index,
		Path:        result.Candidate.Path,
		Params:      result.Candidate.Params,
		Encoding:    string(result.Candidate.Encoding),
		URL:         result.URL,
		Kind:        result.Kind,
		ContentType: result.ContentType,
		Size:        result.ContentLength,
		Truncated:   result.Truncated,
		DurationMS:  result.Duration.Milliseconds(),
		Success:     j.policy.Success(result),
		Marker:      j.policy.Marker(result),
		Snippet:     result.Snippet,
	}
	if entry.Params == nil {
		entry.Params = []probe.Param{}
	}
	if entry.Encoding == "" {
		entry.Encoding = string(probe.EncodingDefault)
	}
	if result.HasStatus() {
		status := result.StatusCode
		entry.Status = &status
	}
	if result.Err != nil {
		entry.Error = &jsonFault{Kind: result.Err.Kind.String(), Message: result.Err.Error()}
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *JSONWriter) WriteFooter(stats Stats) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Results: j.entries,
		Stats: jsonStats{
			Total:      stats.Total,
			Succeeded:  stats.Succeeded,
			Faults:     stats.Faults,
			DurationMS: stats.Duration.Milliseconds(),
		},
	})
}

func (j *JSONWriter) Close() error {
	return closeOutput(j.closer)
}

package output

import (
	"encoding/csv"
	"io"
	"net/url"
	"strconv"

	"github.com/maxvaer/apiprobe/internal/probe"
)

// CSVWriter writes one row per result.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
	policy *probe.Policy
}

// NewCSVWriter creates a CSV output writer.
func NewCSVWriter(outputFile string, policy *probe.Policy) (*CSVWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = probe.DefaultPolicy()
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer, policy: policy}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"index", "path", "params", "encoding", "url", "status", "kind", "size", "duration_ms", "success", "error", "snippet"})
}

func (c *CSVWriter) WriteResult(result *probe.Result) error {
	params := url.Values{}
	for _, p := range result.Candidate.Params {
		params.Add(p.Name, p.Value)
	}
	status := ""
	if result.HasStatus() {
		status = strconv.Itoa(result.StatusCode)
	}
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	encoding := string(result.Candidate.Encoding)
	if encoding == "" {
		encoding = string(probe.EncodingDefault)
	}
	return c.w.Write([]string{
		strconv.Itoa(result.Index),
		result.Candidate.Path,
		params.Encode(),
		encoding,
		result.URL,
		status,
		string(result.Kind),
		strconv.FormatInt(result.ContentLength, 10),
		strconv.FormatInt(result.Duration.Milliseconds(), 10),
		strconv.FormatBool(c.policy.Success(result)),
		errText,
		result.Snippet,
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	return closeOutput(c.closer)
}

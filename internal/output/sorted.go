package output

import (
	"sort"

	"github.com/maxvaer/apiprobe/internal/probe"
)

// SortKeys lists the accepted --sort values.
var SortKeys = []string{"index", "status", "path", "kind"}

// SortedWriter buffers results and replays them sorted when WriteFooter is
// called. Sorting by index restores submission order after a concurrent
// sweep.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*probe.Result
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(result *probe.Result) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.results, func(i, j int) bool {
		a, b := w.results[i], w.results[j]
		switch w.sortBy {
		case "status":
			if a.StatusCode != b.StatusCode {
				return a.StatusCode < b.StatusCode
			}
		case "path":
			if a.Candidate.Path != b.Candidate.Path {
				return a.Candidate.Path < b.Candidate.Path
			}
		case "kind":
			if a.Kind != b.Kind {
				return a.Kind < b.Kind
			}
		}
		return a.Index < b.Index
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}

package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/maxvaer/apiprobe/internal/probe"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// TextOptions configure the text writer.
type TextOptions struct {
	NoColor bool
	Quiet   bool
	// SnippetWidth cuts the displayed snippet; 0 shows it whole.
	SnippetWidth int
	Policy       *probe.Policy
	// Status receives the footer; defaults to stderr.
	Status io.Writer
}

// TextWriter writes one block per result.
type TextWriter struct {
	w      io.Writer
	closer io.Closer
	opts   TextOptions
}

// NewTextWriter creates a text output writer. If outputFile is empty,
// stdout is used.
func NewTextWriter(outputFile string, opts TextOptions) (*TextWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	if opts.Policy == nil {
		opts.Policy = probe.DefaultPolicy()
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	return &TextWriter{w: w, closer: closer, opts: opts}, nil
}

func (t *TextWriter) paint(color, s string) string {
	if t.opts.NoColor || color == "" {
		return s
	}
	return color + s + colorReset
}

func (t *TextWriter) WriteHeader() error {
	if t.opts.Quiet {
		return nil
	}
	_, err := fmt.Fprintln(t.w, t.paint(colorDim, "Code  Kind         Size     Time  Verdict   Candidate"))
	return err
}

func (t *TextWriter) WriteResult(result *probe.Result) error {
	status := "---"
	if result.HasStatus() {
		status = fmt.Sprintf("%3d", result.StatusCode)
	}

	size := "-"
	if result.Err == nil {
		size = units.HumanSize(float64(result.ContentLength))
		if result.Truncated {
			size += "+"
		}
	}

	verdict, color := t.verdict(result)

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-7s  %9s  %6s  %s  %s\n",
		t.paint(color, status),
		result.Kind,
		size,
		result.Duration.Round(time.Millisecond),
		t.paint(color, fmt.Sprintf("%-8s", verdict)),
		result.Candidate.Key(),
	)
	if result.URL != "" {
		fmt.Fprintf(&b, "      %s\n", t.paint(colorDim, result.URL))
	}
	if result.Err != nil {
		fmt.Fprintf(&b, "      error: %s\n", result.Err.Error())
	} else if marker := t.opts.Policy.Marker(result); marker != "" {
		fmt.Fprintf(&b, "      marker: %s\n", marker)
	}
	if result.Snippet != "" {
		fmt.Fprintf(&b, "      | %s\n", t.displaySnippet(result.Snippet))
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) verdict(result *probe.Result) (string, string) {
	switch {
	case result.Err != nil:
		return "FAULT", colorRed
	case t.opts.Policy.Success(result):
		return "OK", colorGreen
	case result.StatusCode == 200:
		return "REJECTED", colorYellow
	case result.StatusCode >= 500:
		return "FAILED", colorRed
	case result.StatusCode >= 300 && result.StatusCode < 400:
		return "REDIRECT", colorCyan
	default:
		return "FAILED", colorYellow
	}
}

// displaySnippet folds the snippet onto one line.
func (t *TextWriter) displaySnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if t.opts.SnippetWidth > 0 {
		if cut := probe.Snippet([]byte(s), t.opts.SnippetWidth); len(cut) < len(s) {
			return cut + "..."
		}
	}
	return s
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.opts.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(t.opts.Status,
		"\nProbed: %d | Succeeded: %d | Faults: %d | Hidden: %d | Duration: %s | %.1f req/s\n",
		stats.Total,
		stats.Succeeded,
		stats.Faults,
		stats.Hidden,
		stats.Duration.Round(time.Millisecond),
		stats.RequestsPerSec,
	)
	return err
}

func (t *TextWriter) Close() error {
	return closeOutput(t.closer)
}

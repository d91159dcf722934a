// Package output renders probe results for humans and scripts.
package output

import (
	"io"
	"os"
	"time"

	"github.com/maxvaer/apiprobe/internal/probe"
)

// Stats holds aggregate sweep statistics.
type Stats struct {
	Total          int
	Succeeded      int
	Faults         int
	Hidden         int // filtered from the rendered stream
	Duration       time.Duration
	RequestsPerSec float64
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(result *probe.Result) error
	WriteFooter(stats Stats) error
	Close() error
}

// openOutput returns stdout when outputFile is empty. The closer is nil
// for stdout.
func openOutput(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func closeOutput(c io.Closer) error {
	if c != nil {
		return c.Close()
	}
	return nil
}

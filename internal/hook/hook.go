// Package hook runs a user command for each rendered result.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/apiprobe/internal/logger"
	"github.com/maxvaer/apiprobe/internal/probe"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 30 * time.Second

// resultJSON is the payload sent to the hook command via stdin. The URL is
// the redacted one.
type resultJSON struct {
	Index    int           `json:"index"`
	Path     string        `json:"path"`
	Params   []probe.Param `json:"params,omitempty"`
	Encoding string        `json:"encoding"`
	URL      string        `json:"url"`
	Status   int           `json:"status"`
	Kind     probe.Kind    `json:"kind"`
	Size     int64         `json:"size"`
	Success  bool          `json:"success"`
	Snippet  string        `json:"snippet"`
	Error    string        `json:"error,omitempty"`
}

// Runner executes a shell command for each result that passed the filters.
type Runner struct {
	cmd     string
	policy  *probe.Policy
	log     *logger.Logger
	Timeout time.Duration
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, policy *probe.Policy, log *logger.Logger) *Runner {
	if policy == nil {
		policy = probe.DefaultPolicy()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{cmd: cmd, policy: policy, log: log.WithComponent("hook"), Timeout: DefaultTimeout}
}

// Expand substitutes the {path}, {url}, {status} and {kind} placeholders.
func (r *Runner) Expand(result *probe.Result) string {
	return strings.NewReplacer(
		"{url}", result.URL,
		"{path}", result.Candidate.Path,
		"{status}", strconv.Itoa(result.StatusCode),
		"{kind}", string(result.Kind),
	).Replace(r.cmd)
}

// Run executes the hook command with the result as JSON on stdin and
// returns its stdout. Failures are logged and never stop the sweep.
func (r *Runner) Run(ctx context.Context, result *probe.Result) []byte {
	payload := resultJSON{
		Index:    result.Index,
		Path:     result.Candidate.Path,
		Params:   result.Candidate.Params,
		Encoding: string(result.Candidate.Encoding),
		URL:      result.URL,
		Status:   result.StatusCode,
		Kind:     result.Kind,
		Size:     result.ContentLength,
		Success:  r.policy.Success(result),
		Snippet:  result.Snippet,
	}
	if result.Err != nil {
		payload.Error = result.Err.Error()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal hook payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.Timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand(result))...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	output, err := cmd.Output()
	if err != nil {
		r.log.Warn().Err(err).Str("path", result.Candidate.Path).Str("stderr", strings.TrimSpace(stderr.String())).Msg("hook failed")
		return output
	}
	if len(output) > 0 {
		r.log.Info().Str("path", result.Candidate.Path).Str("output", strings.TrimSpace(string(output))).Msg("hook")
	}
	return output
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}

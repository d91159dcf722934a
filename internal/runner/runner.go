// Package runner wires candidate loading, the prober, filters, writers,
// hooks and history into one sweep.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maxvaer/apiprobe/internal/candidates"
	"github.com/maxvaer/apiprobe/internal/config"
	"github.com/maxvaer/apiprobe/internal/filter"
	"github.com/maxvaer/apiprobe/internal/history"
	"github.com/maxvaer/apiprobe/internal/hook"
	"github.com/maxvaer/apiprobe/internal/logger"
	"github.com/maxvaer/apiprobe/internal/output"
	"github.com/maxvaer/apiprobe/internal/probe"
	"github.com/maxvaer/apiprobe/pkg/version"
	"golang.org/x/term"
)

// Run executes one sweep. Probe failures are part of the report and never
// make Run fail; it returns an error for bad options, unreadable inputs,
// output failures, or cancellation (after writing the partial report).
func Run(ctx context.Context, opts *config.Options, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("runner")
	if opts.CredentialParam == "" {
		opts.CredentialParam = probe.DefaultCredentialParam
	}

	// 1. Load candidates.
	cands, err := LoadCandidates(opts)
	if err != nil {
		return err
	}
	if err := probe.Validate(cands); err != nil {
		return err
	}

	// 2. Build policy and filter chain.
	policy := probe.DefaultPolicy().WithMarkers(opts.ErrorMarkers...)
	if len(opts.SuccessCodes) > 0 {
		policy = policy.WithSuccessCodes(opts.SuccessCodes...)
	}
	chain, err := buildChain(opts, policy)
	if err != nil {
		return err
	}

	// 3. Create output writer.
	out, err := createWriter(opts, policy)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer out.Close()

	var store *history.Store
	if opts.HistoryFile != "" {
		store, err = history.Open(opts.HistoryFile)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if !opts.Quiet {
		printBanner(os.Stderr, opts, len(cands), !colorEnabled(opts, os.Stderr))
	}
	if err := out.WriteHeader(); err != nil {
		return err
	}

	var hookRunner *hook.Runner
	if opts.OnResultCmd != "" {
		hookRunner = hook.NewRunner(opts.OnResultCmd, policy, log)
	}

	progress := output.NewProgress(os.Stderr, len(cands), !opts.Quiet && isTerminal(os.Stderr))

	// 4. Stream results as they arrive.
	var stats output.Stats
	var writeErr error
	onResult := func(result probe.Result) {
		progress.Record(policy.Success(&result), result.Err != nil)
		if result.Err != nil {
			log.Debug().Str("candidate", result.Candidate.Key()).Str("fault", result.Err.Kind.String()).Err(result.Err.Err).Msg("transport fault")
		}
		if filtered, reason := chain.Apply(&result); filtered {
			stats.Hidden++
			log.Debug().Str("candidate", result.Candidate.Key()).Str("filter", reason).Msg("hidden")
			return
		}
		if writeErr == nil {
			progress.ClearLine()
			writeErr = out.WriteResult(&result)
		}
		if hookRunner != nil {
			hookRunner.Run(ctx, &result)
		}
	}

	prober, err := probe.New(probe.Config{
		BaseHost:        opts.BaseHost,
		Credential:      opts.Credential,
		CredentialParam: opts.CredentialParam,
		Timeout:         opts.Timeout,
		Workers:         opts.Workers,
		RatePerSecond:   opts.Rate,
		Headers:         opts.Headers,
		UserAgent:       userAgent(opts),
		Proxy:           opts.Proxy,
		FollowRedirects: opts.FollowRedirects,
		SkipTLSVerify:   opts.Insecure,
		SnippetLength:   opts.SnippetLength,
		Policy:          policy,
		OnResult:        onResult,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("base_host", opts.BaseHost).
		Str("credential", probe.Redact(opts.Credential)).
		Int("candidates", len(cands)).
		Int("workers", opts.Workers).
		Msg("sweep started")

	progress.Start()
	report, probeErr := prober.Probe(ctx, cands)
	progress.Stop()
	if report == nil {
		return probeErr
	}

	// 5. Footer and history.
	stats.Total = len(report.Results)
	for i := range report.Results {
		if policy.Success(&report.Results[i]) {
			stats.Succeeded++
		}
		if report.Results[i].Err != nil {
			stats.Faults++
		}
	}
	stats.Duration = report.Duration
	if stats.Duration.Seconds() > 0 {
		stats.RequestsPerSec = float64(stats.Total) / stats.Duration.Seconds()
	}

	log.Info().
		Int("probed", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("faults", stats.Faults).
		Dur("duration", stats.Duration).
		Msg("sweep finished")

	if err := out.WriteFooter(stats); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return fmt.Errorf("writing output: %w", writeErr)
	}

	if probeErr != nil {
		log.Warn().Int("probed", stats.Total).Int("candidates", len(cands)).Msg("sweep cancelled, history not saved")
		return probeErr
	}

	if store != nil {
		id, err := store.Save(report, policy)
		if err != nil {
			return err
		}
		log.Info().Uint64("id", id).Str("file", store.Path()).Msg("report saved")
	}
	return nil
}

// LoadCandidates builds the candidate list from the candidates file
// followed by inline --path entries.
func LoadCandidates(opts *config.Options) ([]probe.Candidate, error) {
	common, err := candidates.ParseParams(opts.CommonParams)
	if err != nil {
		return nil, fmt.Errorf("parsing --param: %w", err)
	}
	loadOpts := candidates.LoadOptions{CommonParams: common}
	for _, name := range opts.Encodings {
		enc, err := probe.ParseEncoding(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("parsing --encodings: %w", err)
		}
		loadOpts.Encodings = append(loadOpts.Encodings, enc)
	}

	var out []probe.Candidate
	if opts.CandidatesFile != "" {
		loaded, err := candidates.Load(opts.CandidatesFile, loadOpts)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	if len(opts.Paths) > 0 {
		inline, err := candidates.FromLines(opts.Paths, loadOpts)
		if err != nil {
			return nil, fmt.Errorf("parsing --path: %w", err)
		}
		out = append(out, inline...)
	}
	if out == nil && opts.CandidatesFile == "" {
		return nil, errors.New("no candidates: use --candidates or --path")
	}
	return out, nil
}

func buildChain(opts *config.Options, policy *probe.Policy) (*filter.Chain, error) {
	chain := filter.NewChain()
	if len(opts.IncludeStatus) > 0 || len(opts.ExcludeStatus) > 0 {
		chain.Add(filter.NewStatusFilter(opts.IncludeStatus, opts.ExcludeStatus))
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]probe.Kind, 0, len(opts.Kinds))
		for _, k := range opts.Kinds {
			kind := probe.Kind(strings.ToLower(strings.TrimSpace(k)))
			switch kind {
			case probe.KindJSON, probe.KindXML, probe.KindText, probe.KindUnknown:
			default:
				return nil, fmt.Errorf("unknown kind %q: use json, xml, text or unknown", k)
			}
			kinds = append(kinds, kind)
		}
		chain.Add(filter.NewKindFilter(kinds))
	}
	if opts.SuccessOnly {
		chain.Add(filter.NewSuccessFilter(policy))
	}
	if opts.MatchBody != "" {
		chain.Add(filter.NewSnippetMatchFilter(opts.MatchBody))
	}
	if opts.ExcludeBody != "" {
		chain.Add(filter.NewSnippetExcludeFilter(opts.ExcludeBody))
	}
	return chain, nil
}

func createWriter(opts *config.Options, policy *probe.Policy) (output.Writer, error) {
	var w output.Writer
	var err error
	switch opts.OutputFormat {
	case "json":
		w, err = output.NewJSONWriter(opts.OutputFile, policy)
	case "csv":
		w, err = output.NewCSVWriter(opts.OutputFile, policy)
	default:
		w, err = output.NewTextWriter(opts.OutputFile, output.TextOptions{
			NoColor:      opts.OutputFile != "" || !colorEnabled(opts, os.Stdout),
			Quiet:        opts.Quiet,
			SnippetWidth: opts.SnippetWidth,
			Policy:       policy,
		})
	}
	if err != nil {
		return nil, err
	}
	if opts.SortBy != "" {
		w = output.NewSortedWriter(w, opts.SortBy)
	}
	return w, nil
}

func userAgent(opts *config.Options) string {
	if opts.UserAgent != "" {
		return opts.UserAgent
	}
	return "apiprobe/" + version.Version
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func colorEnabled(opts *config.Options, f *os.File) bool {
	return !opts.NoColor && isTerminal(f)
}

func printBanner(w io.Writer, opts *config.Options, count int, noColor bool) {
	const (
		cyan  = "\033[36m"
		dim   = "\033[2m"
		white = "\033[97m"
		reset = "\033[0m"
	)

	c, d, wh, rs := cyan, dim, white, reset
	if noColor {
		c, d, wh, rs = "", "", "", ""
	}

	encodings := "default"
	if len(opts.Encodings) > 0 {
		encodings = strings.Join(opts.Encodings, ", ")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	fmt.Fprintf(w, "\n%s  apiprobe %s%s %s- endpoint discovery%s\n", c, version.Version, rs, d, rs)
	fmt.Fprintf(w, "%s  --------------------------------------%s\n", d, rs)
	fmt.Fprintf(w, "  %sBase host:%s    %s%s%s\n", d, rs, wh, opts.BaseHost, rs)
	if opts.Credential != "" {
		fmt.Fprintf(w, "  %sCredential:%s   %s (%s)\n", d, rs, probe.Redact(opts.Credential), opts.CredentialParam)
	}
	fmt.Fprintf(w, "  %sCandidates:%s   %d\n", d, rs, count)
	fmt.Fprintf(w, "  %sEncodings:%s    %s\n", d, rs, encodings)
	fmt.Fprintf(w, "  %sWorkers:%s      %d\n", d, rs, workers)
	if opts.Rate > 0 {
		fmt.Fprintf(w, "  %sRate:%s         %.1f req/s\n", d, rs, opts.Rate)
	}
	fmt.Fprintf(w, "  %sTimeout:%s      %s\n", d, rs, opts.Timeout)
	fmt.Fprintf(w, "%s  --------------------------------------%s\n\n", d, rs)
}

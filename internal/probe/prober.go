// Package probe sweeps candidate endpoints of an unknown HTTP API and
// classifies what comes back.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCredentialParam is the query parameter that carries the
// credential unless Config says otherwise.
const DefaultCredentialParam = "serviceKey"

// Config holds everything a sweep needs. The credential is only read.
type Config struct {
	BaseHost        string
	Credential      string
	CredentialParam string
	Timeout         time.Duration

	// Workers <= 1 probes sequentially in submission order.
	Workers int
	// RatePerSecond caps request starts across all workers; 0 disables it.
	RatePerSecond float64

	Headers         map[string]string
	UserAgent       string
	Proxy           string
	FollowRedirects bool
	SkipTLSVerify   bool

	SnippetLength int
	MaxBodyBytes  int64

	// Policy inspects each full body for service rejections; nil means
	// DefaultPolicy.
	Policy *Policy

	// Transport replaces the default HTTP transport, mainly for tests.
	Transport http.RoundTripper
	// OnResult is called for every result as it is produced, from the
	// goroutine running Probe.
	OnResult func(Result)
}

// Prober executes sweeps.
type Prober struct {
	cfg     Config
	req     *requester
	limiter *rate.Limiter
}

// New validates cfg and returns a Prober.
func New(cfg Config) (*Prober, error) {
	base, err := parseBaseHost(cfg.BaseHost)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, invalidConfig("timeout", "must be positive")
	}
	if cfg.Workers < 0 {
		return nil, invalidConfig("workers", "must not be negative")
	}
	if cfg.RatePerSecond < 0 {
		return nil, invalidConfig("rate", "must not be negative")
	}
	if cfg.Credential != "" && strings.TrimSpace(cfg.CredentialParam) == "" {
		return nil, invalidConfig("credential-param", "required when a credential is set")
	}

	req, err := newRequester(&cfg, base)
	if err != nil {
		return nil, err
	}
	p := &Prober{cfg: cfg, req: req}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return p, nil
}

func parseBaseHost(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, malformed("base-host", -1, "empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, malformed("base-host", -1, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, malformed("base-host", -1, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, malformed("base-host", -1, "missing host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, malformed("base-host", -1, "must not carry a query or fragment")
	}
	return u, nil
}

// Validate checks every candidate before anything is sent.
func Validate(candidates []Candidate) error {
	for i, c := range candidates {
		if err := c.Validate(); err != nil {
			return malformed("candidate", i, err.Error())
		}
	}
	return nil
}

// Probe runs one sweep. A failing candidate is recorded in its Result and
// never stops the sweep. The returned error is non-nil only for malformed
// input, in which case nothing was sent, or for cancellation, in which case
// the report holds the results gathered so far.
func (p *Prober) Probe(ctx context.Context, candidates []Candidate) (*Report, error) {
	if err := Validate(candidates); err != nil {
		return nil, err
	}

	report := &Report{
		BaseHost:  p.cfg.BaseHost,
		Workers:   max(p.cfg.Workers, 1),
		StartedAt: time.Now(),
		Results:   make([]Result, 0, len(candidates)),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	emit := func(r Result) {
		report.Results = append(report.Results, r)
		if p.cfg.OnResult != nil {
			p.cfg.OnResult(r)
		}
	}

	if p.cfg.Workers <= 1 || len(candidates) <= 1 {
		for i, c := range candidates {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := p.pace(ctx); err != nil {
				return report, err
			}
			emit(p.req.do(ctx, i, c))
		}
		return report, nil
	}

	workers := min(p.cfg.Workers, len(candidates))
	for r := range p.runPool(ctx, candidates, workers) {
		emit(r)
	}
	if len(report.Results) < len(candidates) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (p *Prober) pace(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Probe sweeps candidates sequentially against baseHost with the default
// credential parameter name.
func Probe(ctx context.Context, baseHost, credential string, candidates []Candidate, timeout time.Duration) (*Report, error) {
	p, err := New(Config{
		BaseHost:        baseHost,
		Credential:      credential,
		CredentialParam: DefaultCredentialParam,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, err
	}
	return p.Probe(ctx, candidates)
}

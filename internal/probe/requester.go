package probe

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 8 << 20

// requester builds and sends the GET request for a candidate.
type requester struct {
	client       *http.Client
	base         *url.URL
	credential   string
	keyParam     string
	headers      map[string]string
	userAgent    string
	timeout      time.Duration
	snippetLen   int
	maxBodyBytes int64
	policy       *Policy
}

func newRequester(cfg *Config, base *url.URL) (*requester, error) {
	transport := cfg.Transport
	if transport == nil {
		t := &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify},
			DialContext: (&net.Dialer{
				Timeout: cfg.Timeout,
			}).DialContext,
			MaxIdleConnsPerHost: max(cfg.Workers, 1),
			MaxIdleConns:        max(cfg.Workers, 1),
		}
		if cfg.Proxy != "" {
			proxyURL, err := url.Parse(cfg.Proxy)
			if err != nil {
				return nil, invalidConfig("proxy", fmt.Sprintf("invalid proxy URL %q: %v", cfg.Proxy, err))
			}
			t.Proxy = http.ProxyURL(proxyURL)
		}
		transport = t
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "apiprobe/1.0"
	}
	snippetLen := cfg.SnippetLength
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLength
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &requester{
		policy:       policy,
		client:       client,
		base:         base,
		credential:   cfg.Credential,
		keyParam:     cfg.CredentialParam,
		headers:      cfg.Headers,
		userAgent:    ua,
		timeout:      cfg.Timeout,
		snippetLen:   snippetLen,
		maxBodyBytes: maxBody,
	}, nil
}

// buildURL renders a candidate into a URL string. The credential is
// written as given when redact is false, else replaced by Redact.
func buildURL(base *url.URL, keyParam, credential string, c Candidate, redact bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base.String(), "/"))
	b.WriteByte('/')
	b.WriteString(strings.TrimLeft(c.Path, "/"))

	sep := byte('?')
	if strings.Contains(c.Path, "?") {
		sep = '&'
	}
	if credential != "" {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(url.QueryEscape(keyParam))
		b.WriteByte('=')
		switch {
		case redact:
			b.WriteString(Redact(credential))
		case c.Encoding.normalized() == EncodingManualKey:
			b.WriteString(manualKey(credential))
		default:
			b.WriteString(url.QueryEscape(credential))
		}
	}
	for _, p := range c.Params {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// manualKey is the credential as sent by the manual-unencoded-key variant:
// verbatim except for "#" and "&", which would otherwise end the query or
// split the credential into a second parameter.
func manualKey(credential string) string {
	return strings.NewReplacer("#", "%23", "&", "%26").Replace(credential)
}

// Redact shortens a secret to something safe to print.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 8 {
		return "****"
	}
	return string(runes[:4]) + "****"
}

// do probes one candidate. It never returns an error: transport problems
// are recorded in the result.
func (r *requester) do(ctx context.Context, index int, c Candidate) Result {
	shown := buildURL(r.base, r.keyParam, r.credential, c, true)
	result := Result{
		Index:     index,
		Candidate: c,
		URL:       shown,
		Kind:      KindUnknown,
	}

	// The sweep context only stops new candidates; a request that has been
	// issued is bounded by its own timeout.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	target := buildURL(r.base, r.keyParam, r.credential, c, false)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		result.Err = newTransportFault(err, shown, r.credential)
		return result
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, br")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		result.Duration = time.Since(start)
		result.Err = newTransportFault(err, shown, r.credential)
		return result
	}
	defer resp.Body.Close()

	body, truncated, err := r.readBody(resp)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = newTransportFault(fmt.Errorf("reading response body: %w", err), shown, r.credential)
		return result
	}

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	result.ContentLength = int64(len(body))
	result.Truncated = truncated
	if truncated {
		result.Kind = sniffKind(body)
	} else {
		result.Kind = DetectKind(body)
	}
	result.Snippet = Snippet(body, r.snippetLen)
	result.Marker = r.policy.Inspect(body, result.Kind)
	return result
}

// readBody decodes the body and reads at most maxBodyBytes of it.
// truncated reports whether more was available.
func (r *requester) readBody(resp *http.Response) (body []byte, truncated bool, err error) {
	var src io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		src = zr
	case "br":
		src = brotli.NewReader(resp.Body)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(src, r.maxBodyBytes+1)); err != nil {
		return nil, false, err
	}
	if int64(buf.Len()) > r.maxBodyBytes {
		return buf.Bytes()[:r.maxBodyBytes], true, nil
	}
	return buf.Bytes(), false, nil
}

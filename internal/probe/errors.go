package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

var (
	// ErrMalformedCandidate is matched by every precondition failure on the
	// base host or a candidate. No request is sent when it is returned.
	ErrMalformedCandidate = errors.New("malformed candidate")
	// ErrInvalidConfig is matched by precondition failures on prober settings.
	ErrInvalidConfig = errors.New("invalid probe configuration")
)

// ValidationError describes a rejected input. Index is the candidate
// position, or -1 when the problem is not tied to a candidate.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: candidate %d: %s", e.kind, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.kind, e.Field, e.Reason)
}

// Is matches the sentinel the error was classified under.
func (e *ValidationError) Is(target error) bool {
	return target == e.kind
}

func malformed(field string, index int, reason string) *ValidationError {
	return &ValidationError{Field: field, Index: index, Reason: reason, kind: ErrMalformedCandidate}
}

func invalidConfig(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Index: -1, Reason: reason, kind: ErrInvalidConfig}
}

// FaultKind categorizes a transport fault.
type FaultKind int

const (
	FaultOther FaultKind = iota
	FaultTimeout
	FaultDNS
	FaultConnection
)

func (k FaultKind) String() string {
	switch k {
	case FaultTimeout:
		return "timeout"
	case FaultDNS:
		return "dns"
	case FaultConnection:
		return "connection"
	default:
		return "other"
	}
}

// TransportFault is a request that never produced a complete response.
// URL carries the redacted request URL.
type TransportFault struct {
	Kind FaultKind
	URL  string
	Err  error
}

func (f *TransportFault) Error() string {
	return fmt.Sprintf("%s fault on %s: %v", f.Kind, f.URL, f.Err)
}

func (f *TransportFault) Unwrap() error { return f.Err }

// newTransportFault categorizes err. credential is scrubbed from the
// message because net/http embeds the full URL in *url.Error.
func newTransportFault(err error, redactedURL, credential string) *TransportFault {
	return &TransportFault{
		Kind: categorize(err),
		URL:  redactedURL,
		Err:  scrubbed{err: err, credential: credential},
	}
}

func categorize(err error) FaultKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return FaultTimeout
		}
		return FaultDNS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FaultTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FaultTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return FaultConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FaultConnection
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return FaultDNS
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "EOF"):
		return FaultConnection
	}
	return FaultOther
}

// scrubbed hides the credential in the wrapped error's message while
// keeping it inspectable with errors.Is and errors.As.
type scrubbed struct {
	err        error
	credential string
}

func (s scrubbed) Error() string {
	msg := s.err.Error()
	if s.credential == "" {
		return msg
	}
	r := Redact(s.credential)
	return strings.NewReplacer(
		s.credential, r,
		url.QueryEscape(s.credential), r,
		manualKey(s.credential), r,
	).Replace(msg)
}

func (s scrubbed) Unwrap() error { return s.err }

package probe

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// DefaultSnippetLength bounds Result.Snippet, in characters.
const DefaultSnippetLength = 500

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectKind classifies a response body. Only objects and arrays count as
// JSON: a bare string like "not found" is text to a human reader. An HTML
// document is text even though it tokenizes as XML.
func DetectKind(body []byte) Kind {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return KindText
	}
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return KindJSON
	}
	if trimmed[0] == '<' && hasXMLRoot(trimmed) {
		return KindXML
	}
	return KindText
}

// sniffKind classifies a body cut at the read limit by its opening bytes,
// since a cut document never validates.
func sniffKind(body []byte) Kind {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	switch {
	case len(trimmed) == 0:
		return KindText
	case trimmed[0] == '{' || trimmed[0] == '[':
		return KindJSON
	case trimmed[0] == '<' && hasXMLRoot(trimmed):
		return KindXML
	}
	return KindText
}

func hasXMLRoot(body []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return !strings.EqualFold(t.Name.Local, "html")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		case xml.ProcInst, xml.Comment, xml.Directive:
		default:
			return false
		}
	}
}

// Snippet returns the first n characters of body. Bytes are kept as-is so
// invalid UTF-8 is not rewritten.
func Snippet(body []byte, n int) string {
	if n <= 0 {
		return ""
	}
	s := string(body)
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// DefaultErrorMarkers are tokens that data-portal style APIs embed in a
// 200 response when the call was rejected.
var DefaultErrorMarkers = []string{
	"SERVICE_KEY_IS_NOT_REGISTERED_ERROR",
	"SERVICE_ACCESS_DENIED_ERROR",
	"NO_MANDATORY_REQUEST_PARAMETERS_ERROR",
	"INVALID_REQUEST_PARAMETER_ERROR",
	"LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR",
	"UNREGISTERED_IP_ERROR",
	"DEADLINE_HAS_EXPIRED_ERROR",
	"APPLICATION_ERROR",
	"SERVICE ERROR",
	"<cmmMsgHeader>",
	"<returnReasonCode>",
}

// DefaultSuccessCodes are the header resultCode values of an accepted call.
var DefaultSuccessCodes = []string{"0000", "00"}

// Policy decides which results count as a working endpoint.
type Policy struct {
	// Markers are case-sensitive substrings of the body that turn an
	// otherwise good response into a failure.
	Markers []string
	// SuccessCodes are the accepted values of a header resultCode field in
	// a JSON or XML body. Any other code is a failure; a body without the
	// field is judged by Markers alone. Empty disables the check.
	SuccessCodes []string
}

// DefaultPolicy uses DefaultErrorMarkers and DefaultSuccessCodes.
func DefaultPolicy() *Policy {
	return &Policy{
		Markers:      append([]string(nil), DefaultErrorMarkers...),
		SuccessCodes: append([]string(nil), DefaultSuccessCodes...),
	}
}

func (p *Policy) clone() *Policy {
	return &Policy{
		Markers:      append([]string(nil), p.Markers...),
		SuccessCodes: append([]string(nil), p.SuccessCodes...),
	}
}

// WithMarkers returns a copy of p with extra markers appended.
func (p *Policy) WithMarkers(extra ...string) *Policy {
	c := p.clone()
	c.Markers = append(c.Markers, extra...)
	return c
}

// WithSuccessCodes returns a copy of p accepting exactly codes.
func (p *Policy) WithSuccessCodes(codes ...string) *Policy {
	c := p.clone()
	c.SuccessCodes = append([]string(nil), codes...)
	return c
}

// Success reports whether r is a 200 with a structured body that carries
// neither an error marker nor a failing result code.
func (p *Policy) Success(r *Result) bool {
	if r.Err != nil || r.StatusCode != http.StatusOK {
		return false
	}
	if r.Kind != KindJSON && r.Kind != KindXML {
		return false
	}
	return p.Marker(r) == ""
}

// Marker returns why r was rejected by the service. r.Marker, set by the
// prober from the full body, wins; otherwise the snippet is inspected.
func (p *Policy) Marker(r *Result) string {
	if r.Marker != "" {
		return r.Marker
	}
	return p.Inspect([]byte(r.Snippet), r.Kind)
}

// Inspect returns the first error marker found in body, or the result
// code when it is not a success code. An empty string means neither.
func (p *Policy) Inspect(body []byte, kind Kind) string {
	for _, m := range p.Markers {
		if m != "" && bytes.Contains(body, []byte(m)) {
			return m
		}
	}
	if len(p.SuccessCodes) == 0 || (kind != KindJSON && kind != KindXML) {
		return ""
	}
	if code, ok := ResultCode(body, kind); ok && !slices.Contains(p.SuccessCodes, code) {
		return "resultCode " + code
	}
	return ""
}

// ResultCode extracts header.resultCode from a JSON or XML body. The
// header may sit at the top level or one object down, as in
// {"response":{"header":{...}}} or <response><header>...</header>.
func ResultCode(body []byte, kind Kind) (string, bool) {
	switch kind {
	case KindJSON:
		return jsonResultCode(body)
	case KindXML:
		return xmlResultCode(body)
	}
	return "", false
}

func jsonResultCode(body []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", false
	}
	return headerCode(doc, 2)
}

func headerCode(v any, depth int) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok || depth == 0 {
		return "", false
	}
	if header, ok := obj["header"].(map[string]any); ok {
		if code, ok := header["resultCode"]; ok && code != nil {
			return strings.TrimSpace(fmt.Sprint(code)), true
		}
	}
	for _, child := range obj {
		if code, ok := headerCode(child, depth-1); ok {
			return code, true
		}
	}
	return "", false
}

func xmlResultCode(body []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var stack []string
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n := len(stack)
			if n >= 2 && stack[n-1] == "resultCode" && stack[n-2] == "header" && n <= 3 {
				return strings.TrimSpace(text.String()), true
			}
			if n > 0 {
				stack = stack[:n-1]
			}
		}
	}
}

var defaultPolicy = DefaultPolicy()

// ClassifySuccess applies the default policy.
func ClassifySuccess(r *Result) bool {
	return defaultPolicy.Success(r)
}

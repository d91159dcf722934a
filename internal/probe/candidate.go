package probe

import (
	"fmt"
	"strings"
)

// Encoding selects how the credential is placed into the request URL.
type Encoding string

const (
	// EncodingDefault percent-encodes the credential like every other value.
	EncodingDefault Encoding = "default"
	// EncodingManualKey inserts the credential verbatim. Some portals issue
	// keys that are already percent-encoded and reject them when encoded twice.
	EncodingManualKey Encoding = "manual-unencoded-key"
)

// Encodings lists every supported variant in a stable order.
var Encodings = []Encoding{EncodingDefault, EncodingManualKey}

// ParseEncoding maps a user-supplied name to an Encoding. The empty string
// and a few short aliases are accepted.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "encoded":
		return EncodingDefault, nil
	case "manual-unencoded-key", "manual", "raw", "unencoded":
		return EncodingManualKey, nil
	default:
		return "", fmt.Errorf("unknown encoding variant %q (want default or manual-unencoded-key)", s)
	}
}

func (e Encoding) normalized() Encoding {
	if e == "" {
		return EncodingDefault
	}
	return e
}

// Param is one query parameter of a candidate.
type Param struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Candidate is one hypothesis about the target API: a path, its parameters
// and the credential encoding to try.
type Candidate struct {
	Path     string   `json:"path"`
	Params   []Param  `json:"params,omitempty"`
	Encoding Encoding `json:"encoding"`
}

// ParamValue returns the value of the named parameter.
func (c Candidate) ParamValue(name string) (string, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Validate reports why the candidate cannot be probed, or nil.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("empty path")
	}
	seen := make(map[string]struct{}, len(c.Params))
	for _, p := range c.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	switch c.Encoding.normalized() {
	case EncodingDefault, EncodingManualKey:
	default:
		return fmt.Errorf("unknown encoding variant %q", c.Encoding)
	}
	return nil
}

// Key identifies the candidate independently of its position in a list.
// Two candidates with the same key send the same request.
func (c Candidate) Key() string {
	var b strings.Builder
	b.WriteString(c.Path)
	for i, p := range c.Params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	b.WriteString(" [")
	b.WriteString(string(c.Encoding.normalized()))
	b.WriteByte(']')
	return b.String()
}

// String renders the candidate for humans.
func (c Candidate) String() string { return c.Key() }

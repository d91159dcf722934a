// Package candidates loads the human-maintained lists of endpoint guesses.
package candidates

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxvaer/apiprobe/internal/probe"
	"gopkg.in/yaml.v3"
)

// LoadOptions control how loaded entries are expanded.
type LoadOptions struct {
	// CommonParams are appended to every candidate that does not already
	// name them, e.g. paging parameters the whole API family expects.
	CommonParams []probe.Param
	// Encodings expands each entry without an explicit encoding into one
	// candidate per variant. Empty means the default variant only.
	Encodings []probe.Encoding
}

// entry is a parsed line or YAML item before expansion.
type entry struct {
	candidate probe.Candidate
	explicit  bool // encoding was given for this entry
}

// Load reads candidates from path. Files ending in .yaml or .yml hold a
// list of objects; anything else holds one candidate per line. Entries are
// kept in file order and never deduplicated.
func Load(path string, opts LoadOptions) ([]probe.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidates %s: %w", path, err)
	}

	var entries []entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	default:
		entries, err = parseLines(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing candidates %s: %w", path, err)
	}
	return expand(entries, opts), nil
}

// FromLines parses candidates given directly, e.g. on the command line.
func FromLines(lines []string, opts LoadOptions) ([]probe.Candidate, error) {
	entries, err := parseLines(strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}
	return expand(entries, opts), nil
}

func parseLines(raw string) ([]entry, error) {
	var entries []entry
	for n, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, explicit, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		entries = append(entries, entry{candidate: c, explicit: explicit})
	}
	return entries, nil
}

// ParseLine parses "path[?name=value&...] [encoding]". Query values are
// unescaped so they are escaped exactly once when the request is built.
// explicit reports whether an encoding was named.
func ParseLine(line string) (c probe.Candidate, explicit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return c, false, fmt.Errorf("empty candidate")
	}
	if len(fields) > 2 {
		return c, false, fmt.Errorf("unexpected fields after encoding in %q", line)
	}

	target := fields[0]
	c.Encoding = probe.EncodingDefault
	if len(fields) == 2 {
		c.Encoding, err = probe.ParseEncoding(fields[1])
		if err != nil {
			return c, false, err
		}
		explicit = true
	}

	path, query, _ := strings.Cut(target, "?")
	c.Path = path
	if query != "" {
		c.Params, err = ParseParams(strings.Split(query, "&"))
		if err != nil {
			return c, false, err
		}
	}
	return c, explicit, nil
}

// ParseParams parses "name=value" pairs, keeping their order. A pair
// without "=" has an empty value. Duplicates are kept so validation can
// report them.
func ParseParams(pairs []string) ([]probe.Param, error) {
	params := make([]probe.Param, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("parameter name %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("parameter %q value: %w", name, err)
		}
		params = append(params, probe.Param{Name: name, Value: value})
	}
	return params, nil
}

type yamlCandidate struct {
	Path     string     `yaml:"path"`
	Params   yamlParams `yaml:"params"`
	Encoding string     `yaml:"encoding"`
}

// yamlParams accepts either a mapping, kept in document order, or a list
// of "name=value" strings.
type yamlParams []probe.Param

func (p *yamlParams) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			*p = append(*p, probe.Param{Name: node.Content[i].Value, Value: node.Content[i+1].Value})
		}
		return nil
	case yaml.SequenceNode:
		var pairs []string
		if err := node.Decode(&pairs); err != nil {
			return err
		}
		params, err := ParseParams(pairs)
		if err != nil {
			return err
		}
		*p = append(*p, params...)
		return nil
	default:
		return fmt.Errorf("line %d: params must be a mapping or a list", node.Line)
	}
}

func parseYAML(data []byte) ([]entry, error) {
	var items []yamlCandidate
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(items))
	for i, item := range items {
		enc, err := probe.ParseEncoding(item.Encoding)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		entries = append(entries, entry{
			candidate: probe.Candidate{Path: item.Path, Params: []probe.Param(item.Params), Encoding: enc},
			explicit:  item.Encoding != "",
		})
	}
	return entries, nil
}

func expand(entries []entry, opts LoadOptions) []probe.Candidate {
	out := make([]probe.Candidate, 0, len(entries))
	for _, e := range entries {
		c := withCommonParams(e.candidate, opts.CommonParams)
		if e.explicit || len(opts.Encodings) == 0 {
			out = append(out, c)
			continue
		}
		for _, enc := range opts.Encodings {
			v := c
			v.Params = append([]probe.Param(nil), c.Params...)
			v.Encoding = enc
			out = append(out, v)
		}
	}
	return out
}

func withCommonParams(c probe.Candidate, common []probe.Param) probe.Candidate {
	if len(common) == 0 {
		return c
	}
	params := append([]probe.Param(nil), c.Params...)
	for _, p := range common {
		if _, ok := c.ParamValue(p.Name); !ok {
			params = append(params, p)
		}
	}
	c.Params = params
	return c
}

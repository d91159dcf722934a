// Package config holds the command-line options and the optional YAML file
// that supplies defaults for them.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// CredentialEnv names the environment variable read when --credential is
// not given.
const CredentialEnv = "APIPROBE_CREDENTIAL"

// Options holds all configuration for an apiprobe sweep.
type Options struct {
	// Target
	BaseHost        string
	Credential      string
	CredentialParam string
	CandidatesFile  string
	Paths           []string // inline candidates, same syntax as file lines
	CommonParams    []string // name=value appended to every candidate
	Encodings       []string

	// Performance
	Workers int
	Timeout time.Duration
	Rate    float64 // requests per second, 0 = unlimited

	// HTTP
	Headers         map[string]string
	UserAgent       string
	Proxy           string
	FollowRedirects bool
	Insecure        bool

	// Classification
	SnippetLength int
	ErrorMarkers  []string // added to the built-in markers
	SuccessCodes  []string // replaces the accepted header resultCode values

	// Filters
	IncludeStatus []int
	ExcludeStatus []int
	Kinds         []string
	SuccessOnly   bool
	MatchBody     string
	ExcludeBody   string

	// Output
	OutputFile   string
	OutputFormat string // "text", "json", "csv"
	SortBy       string
	SnippetWidth int
	Quiet        bool
	NoColor      bool

	// History
	HistoryFile string

	// Hooks
	OnResultCmd string

	// Logging
	LogLevel string
	LogJSON  bool

	ConfigFile string
}

// LoadFile reads a flat YAML mapping keyed by long flag names. Scalar
// values become one item; sequences give one item per element; a mapping
// gives "key: value" items, which suits --header.
func LoadFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	values := make(map[string][]string, len(doc))
	for name, node := range doc {
		items, err := nodeValues(&node)
		if err != nil {
			return nil, fmt.Errorf("config %s: %s: %w", path, name, err)
		}
		values[name] = items
	}
	return values, nil
}

func nodeValues(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, n := range node.Content {
			if n.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: list items must be scalars", n.Line)
			}
			items = append(items, n.Value)
		}
		return items, nil
	case yaml.MappingNode:
		items := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			items = append(items, node.Content[i].Value+": "+node.Content[i+1].Value)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported value", node.Line)
	}
}

// Apply sets every flag named in values that was not given on the command
// line. Unknown names are an error so typos do not pass silently.
func Apply(fs *pflag.FlagSet, values map[string][]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("config: unknown option %q", name)
		}
		if f.Changed {
			continue
		}
		for _, v := range values[name] {
			if err := fs.Set(name, v); err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
		}
	}
	return nil
}

package filter

import (
	"strings"

	"github.com/maxvaer/apiprobe/internal/probe"
)

// SnippetMatchFilter only passes results whose snippet contains needle.
type SnippetMatchFilter struct {
	needle string
}

func NewSnippetMatchFilter(needle string) *SnippetMatchFilter {
	return &SnippetMatchFilter{needle: needle}
}

func (f *SnippetMatchFilter) Name() string { return "match-body" }

func (f *SnippetMatchFilter) ShouldFilter(result *probe.Result) bool {
	return !strings.Contains(result.Snippet, f.needle)
}

// SnippetExcludeFilter hides results whose snippet contains needle.
type SnippetExcludeFilter struct {
	needle string
}

func NewSnippetExcludeFilter(needle string) *SnippetExcludeFilter {
	return &SnippetExcludeFilter{needle: needle}
}

func (f *SnippetExcludeFilter) Name() string { return "exclude-body" }

func (f *SnippetExcludeFilter) ShouldFilter(result *probe.Result) bool {
	return strings.Contains(result.Snippet, f.needle)
}

// Package filter hides probe results from the rendered report. Hidden
// results are still counted and still stored in history.
package filter

import "github.com/maxvaer/apiprobe/internal/probe"

// Filter decides whether a result should be hidden from output.
type Filter interface {
	Name() string
	ShouldFilter(result *probe.Result) bool
}

// Chain applies filters in order and stops at the first match.
type Chain struct {
	filters []Filter
}

// NewChain returns an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Len returns the number of filters.
func (c *Chain) Len() int { return len(c.filters) }

// Apply runs every filter against the result. Returns true and the filter
// name if the result should be hidden.
func (c *Chain) Apply(result *probe.Result) (bool, string) {
	for _, f := range c.filters {
		if f.ShouldFilter(result) {
			return true, f.Name()
		}
	}
	return false, ""
}

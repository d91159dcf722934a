package filter

import "github.com/maxvaer/apiprobe/internal/probe"

// StatusFilter includes or excludes results by HTTP status. A result
// without a status is matched as status 0.
type StatusFilter struct {
	include map[int]struct{}
	exclude map[int]struct{}
}

// NewStatusFilter creates a status filter. A non-empty include list takes
// precedence over exclude.
func NewStatusFilter(include, exclude []int) *StatusFilter {
	f := &StatusFilter{
		include: make(map[int]struct{}, len(include)),
		exclude: make(map[int]struct{}, len(exclude)),
	}
	for _, code := range include {
		f.include[code] = struct{}{}
	}
	for _, code := range exclude {
		f.exclude[code] = struct{}{}
	}
	return f
}

func (f *StatusFilter) Name() string { return "status" }

func (f *StatusFilter) ShouldFilter(result *probe.Result) bool {
	if len(f.include) > 0 {
		_, ok := f.include[result.StatusCode]
		return !ok
	}
	_, ok := f.exclude[result.StatusCode]
	return ok
}

package filter

import "github.com/maxvaer/apiprobe/internal/probe"

// KindFilter only passes results of the listed content kinds.
type KindFilter struct {
	kinds map[probe.Kind]struct{}
}

func NewKindFilter(kinds []probe.Kind) *KindFilter {
	f := &KindFilter{kinds: make(map[probe.Kind]struct{}, len(kinds))}
	for _, k := range kinds {
		f.kinds[k] = struct{}{}
	}
	return f
}

func (f *KindFilter) Name() string { return "kind" }

func (f *KindFilter) ShouldFilter(result *probe.Result) bool {
	_, ok := f.kinds[result.Kind]
	return !ok
}

// SuccessFilter hides everything the policy does not accept.
type SuccessFilter struct {
	policy *probe.Policy
}

func NewSuccessFilter(policy *probe.Policy) *SuccessFilter {
	return &SuccessFilter{policy: policy}
}

func (f *SuccessFilter) Name() string { return "success-only" }

func (f *SuccessFilter) ShouldFilter(result *probe.Result) bool {
	return !f.policy.Success(result)
}

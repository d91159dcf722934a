package filter

import (
	"testing"

	"github.com/maxvaer/apiprobe/internal/probe"
)

func TestStatusFilter_Include(t *testing.T) {
	f := NewStatusFilter([]int{200}, nil)

	if f.ShouldFilter(&probe.Result{StatusCode: 200}) {
		t.Error("200 should pass include filter")
	}
	if !f.ShouldFilter(&probe.Result{StatusCode: 500}) {
		t.Error("500 should be filtered by include filter")
	}
	if !f.ShouldFilter(&probe.Result{}) {
		t.Error("a result without status should be filtered by include filter")
	}
}

func TestStatusFilter_Exclude(t *testing.T) {
	f := NewStatusFilter(nil, []int{404, 0})

	if f.ShouldFilter(&probe.Result{StatusCode: 200}) {
		t.Error("200 should pass exclude filter")
	}
	if !f.ShouldFilter(&probe.Result{StatusCode: 404}) {
		t.Error("404 should be filtered by exclude filter")
	}
	if !f.ShouldFilter(&probe.Result{}) {
		t.Error("status 0 should match transport faults")
	}
}

func TestKindFilter(t *testing.T) {
	f := NewKindFilter([]probe.Kind{probe.KindJSON, probe.KindXML})

	if f.ShouldFilter(&probe.Result{Kind: probe.KindXML}) {
		t.Error("xml should pass")
	}
	if !f.ShouldFilter(&probe.Result{Kind: probe.KindText}) {
		t.Error("text should be filtered")
	}
}

func TestSuccessFilter(t *testing.T) {
	f := NewSuccessFilter(probe.DefaultPolicy())

	ok := &probe.Result{StatusCode: 200, Kind: probe.KindJSON, Snippet: `{"header":{"resultCode":"0000"}}`}
	if f.ShouldFilter(ok) {
		t.Error("successful result should pass")
	}
	rejected := &probe.Result{StatusCode: 200, Kind: probe.KindXML, Snippet: "<cmmMsgHeader><errMsg>SERVICE ERROR</errMsg>"}
	if !f.ShouldFilter(rejected) {
		t.Error("service error should be filtered")
	}
}

func TestSnippetFilters(t *testing.T) {
	r := &probe.Result{Snippet: `{"routeNo":"급행1"}`}

	if NewSnippetMatchFilter("급행1").ShouldFilter(r) {
		t.Error("match filter should pass a snippet containing the needle")
	}
	if !NewSnippetMatchFilter("401").ShouldFilter(r) {
		t.Error("match filter should hide a snippet without the needle")
	}
	if !NewSnippetExcludeFilter("routeNo").ShouldFilter(r) {
		t.Error("exclude filter should hide a snippet containing the needle")
	}
}

func TestChain_ShortCircuits(t *testing.T) {
	chain := NewChain()
	chain.Add(NewStatusFilter(nil, []int{404}))
	chain.Add(NewKindFilter([]probe.Kind{probe.KindJSON}))

	r := &probe.Result{StatusCode: 404, Kind: probe.KindText}
	filtered, reason := chain.Apply(r)
	if !filtered {
		t.Error("expected chain to filter")
	}
	if reason != "status" {
		t.Errorf("expected reason 'status', got %q", reason)
	}

	if filtered, _ := chain.Apply(&probe.Result{StatusCode: 200, Kind: probe.KindJSON}); filtered {
		t.Error("200 json should pass the chain")
	}
	if chain.Len() != 2 {
		t.Errorf("Len = %d", chain.Len())
	}
}

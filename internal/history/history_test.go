package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxvaer/apiprobe/internal/probe"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func result(index int, path string, status int, kind probe.Kind, snippet string) probe.Result {
	return probe.Result{
		Index:      index,
		Candidate:  probe.Candidate{Path: path, Encoding: probe.EncodingDefault},
		URL:        "https://api.example.org/" + path + "?serviceKey=abcd****",
		StatusCode: status,
		Kind:       kind,
		Snippet:    snippet,
	}
}

func report(results ...probe.Result) *probe.Report {
	return &probe.Report{
		BaseHost:  "https://api.example.org",
		Workers:   1,
		StartedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Duration:  2 * time.Second,
		Results:   results,
	}
}

func TestSaveLoadList(t *testing.T) {
	s := openStore(t)

	first := report(result(0, "getBs02", 200, probe.KindJSON, `{"ok":true}`), result(1, "getPos02", 404, probe.KindText, "not found"))
	id1, err := s.Save(first, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	faulted := result(0, "getBs02", 0, probe.KindUnknown, "")
	faulted.Err = &probe.TransportFault{Kind: probe.FaultTimeout, URL: faulted.URL, Err: errors.New("deadline")}
	id2, err := s.Save(report(faulted), nil)
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}

	rec, err := s.Load(id1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.BaseHost != "https://api.example.org" || len(rec.Entries) != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if !rec.Entries[0].Success || rec.Entries[1].Success {
		t.Errorf("verdicts = %v, %v", rec.Entries[0].Success, rec.Entries[1].Success)
	}
	if rec.Entries[0].Key != "getBs02 [default]" {
		t.Errorf("key = %q", rec.Entries[0].Key)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != id2 || latest.Entries[0].FaultKind != "timeout" {
		t.Errorf("latest = %+v", latest)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != id1 || list[0].Succeeded != 1 || list[1].Faults != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openStore(t)
	if _, err := s.Load(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(42) err = %v, want ErrNotFound", err)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest on empty store err = %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Save(report(result(0, "getBs02", 200, probe.KindXML, "<response>")), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Load(id); err != nil {
		t.Errorf("record lost after reopen: %v", err)
	}
}

func TestDiff(t *testing.T) {
	before := NewRecord(report(
		result(0, "getBs02", 200, probe.KindJSON, `{"ok":true}`),
		result(1, "getPos02", 404, probe.KindText, "not found"),
		result(2, "getDup", 200, probe.KindXML, "<response>"),
		result(3, "getDup", 200, probe.KindXML, "<response>"),
		result(4, "getGone", 500, probe.KindText, "error"),
	), nil)
	after := NewRecord(report(
		// Arrival order of a concurrent sweep.
		result(1, "getPos02", 200, probe.KindXML, "<response>"),
		result(0, "getBs02", 200, probe.KindJSON, `{"ok":true}`),
		result(2, "getDup", 200, probe.KindXML, "<response>"),
		result(3, "getDup", 200, probe.KindXML, "<response>"),
		result(4, "getDup", 200, probe.KindXML, "<response>"),
		result(5, "getNew", 200, probe.KindJSON, `{}`),
	), nil)

	changes := Diff(before, after)
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %d: %+v", len(changes), changes)
	}

	want := []struct {
		typ        ChangeType
		key        string
		occurrence int
	}{
		{Changed, "getPos02 [default]", 0},
		{Added, "getDup [default]", 2},
		{Added, "getNew [default]", 0},
		{Removed, "getGone [default]", 0},
	}
	for i, w := range want {
		c := changes[i]
		if c.Type != w.typ || c.Key != w.key || c.Occurrence != w.occurrence {
			t.Errorf("change %d = %s %s #%d, want %s %s #%d", i, c.Type, c.Key, c.Occurrence, w.typ, w.key, w.occurrence)
		}
	}
	if got := changes[0].Fields; len(got) != 3 || got[0] != "status" || got[1] != "kind" || got[2] != "verdict" {
		t.Errorf("changed fields = %v", got)
	}
	if changes[3].New != nil || changes[3].Old == nil {
		t.Error("removed change should carry only the old entry")
	}
}

func TestDiffIdentical(t *testing.T) {
	rec := NewRecord(report(result(0, "getBs02", 200, probe.KindJSON, `{}`)), nil)
	if changes := Diff(rec, rec); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

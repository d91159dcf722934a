package history

import "sort"

// ChangeType classifies a difference between two records.
type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
	Changed ChangeType = "changed"
)

// Change is one difference between two records. Old is nil for added
// entries and New is nil for removed ones.
type Change struct {
	Type       ChangeType
	Key        string
	Occurrence int // 0 for the first entry with Key, 1 for the second, ...
	Old        *Entry
	New        *Entry
	Fields     []string // status, kind, verdict
}

type slot struct {
	key string
	n   int
}

// Diff compares an earlier record with a later one. Entries are paired by candidate key and the
// order in which that key occurs, so duplicates pair up one to one and the
// submission order of a concurrent sweep does not matter. Changes follow
// the later record's order, with removed entries last.
func Diff(before, after *Record) []Change {
	oldBySlot := make(map[slot]*Entry, len(before.Entries))
	oldOrder := make([]slot, 0, len(before.Entries))
	for _, e := range indexOrder(before.Entries) {
		s := nextSlot(oldBySlot, e.Key)
		oldBySlot[s] = e
		oldOrder = append(oldOrder, s)
	}

	var changes []Change
	seen := make(map[slot]bool, len(after.Entries))
	newBySlot := make(map[slot]*Entry, len(after.Entries))
	for _, e := range indexOrder(after.Entries) {
		s := nextSlot(newBySlot, e.Key)
		newBySlot[s] = e
		prev, ok := oldBySlot[s]
		if !ok {
			changes = append(changes, Change{Type: Added, Key: s.key, Occurrence: s.n, New: e})
			continue
		}
		seen[s] = true
		if fields := compare(prev, e); len(fields) > 0 {
			changes = append(changes, Change{Type: Changed, Key: s.key, Occurrence: s.n, Old: prev, New: e, Fields: fields})
		}
	}

	for _, s := range oldOrder {
		if !seen[s] {
			changes = append(changes, Change{Type: Removed, Key: s.key, Occurrence: s.n, Old: oldBySlot[s]})
		}
	}
	return changes
}

func nextSlot(m map[slot]*Entry, key string) slot {
	s := slot{key: key}
	for {
		if _, taken := m[s]; !taken {
			return s
		}
		s.n++
	}
}

func indexOrder(entries []Entry) []*Entry {
	out := make([]*Entry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func compare(a, b *Entry) []string {
	var fields []string
	if a.Status != b.Status {
		fields = append(fields, "status")
	}
	if a.Kind != b.Kind {
		fields = append(fields, "kind")
	}
	if a.Success != b.Success {
		fields = append(fields, "verdict")
	}
	return fields
}

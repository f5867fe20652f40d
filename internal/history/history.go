// Package history owns the shell history record model.
//
// Ownership boundary:
// - record identity
// - set-union merge and timestamp ordering
package history

import (
	"fmt"
	"sort"
)

// Record is one shell history entry. Identity is the full
// (Command, When, Extra) triple; Extra is part of identity, not metadata.
type Record struct {
	Command string
	When    int64
	Extra   string
}

func New(command string, when int64, extra string) Record {
	return Record{Command: command, When: when, Extra: extra}
}

func (r Record) String() string {
	return fmt.Sprintf("%q@%d", r.Command, r.When)
}

// Union merges sets into one deduplicated slice ordered by ascending When.
// Records sharing a timestamp keep their first-seen order.
func Union(sets ...[]Record) []Record {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	seen := make(map[Record]struct{}, total)
	out := make([]Record, 0, total)
	for _, set := range sets {
		for _, r := range set {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	SortByWhen(out)
	return out
}

// SortByWhen orders records by ascending When in place, stable.
func SortByWhen(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].When < records[j].When
	})
}

// Contains reports whether r is present in records.
func Contains(records []Record, r Record) bool {
	for _, candidate := range records {
		if candidate == r {
			return true
		}
	}
	return false
}

package profile

import "strings"

// Merge folds incoming into existing and returns the result. Neither input
// is modified.
//
// A non-empty incoming value is written even when it replaces a non-empty
// existing one. An empty incoming value is ignored: it never erases a known
// value and never records an unknown field. Keys present only in existing
// are carried through.
func Merge(existing, incoming FieldSet) FieldSet {
	out := existing.Clone()
	for k, v := range incoming {
		if isEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// isEmpty treats whitespace-only values as empty.
func isEmpty(v string) bool {
	return strings.TrimSpace(v) == ""
}

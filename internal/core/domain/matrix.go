package domain

import (
	"sort"
	"strings"
)

// ExpandMatrix returns every axis combination of the matrix, minus excluded
// ones. Expansion is deterministic: axes are iterated in sorted name order,
// values in declared order. An empty matrix yields a single empty combination
// so a workflow without a matrix still produces exactly one job.
func ExpandMatrix(m MatrixSpec) []map[string]string {
	axes := make([]string, 0, len(m.Axes))
	for axis := range m.Axes {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	combos := []map[string]string{{}}
	for _, axis := range axes {
		next := make([]map[string]string, 0, len(combos)*len(m.Axes[axis]))
		for _, combo := range combos {
			for _, value := range m.Axes[axis] {
				c := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					c[k] = v
				}
				c[axis] = value
				next = append(next, c)
			}
		}
		combos = next
	}

	if len(m.Exclude) == 0 {
		return combos
	}

	kept := combos[:0]
	for _, combo := range combos {
		if !excluded(combo, m.Exclude) {
			kept = append(kept, combo)
		}
	}
	return kept
}

// excluded reports whether some exclude entry is a submatch of the combination:
// every key/value the entry names must equal the combination's value.
func excluded(combo map[string]string, excludes []map[string]string) bool {
	for _, ex := range excludes {
		if len(ex) == 0 {
			continue
		}
		match := true
		for k, v := range ex {
			if combo[k] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// MatrixLabel renders a combination as "k:v, k:v" with keys sorted, for use in
// job names. An empty combination renders as the empty string.
func MatrixLabel(combo map[string]string) string {
	if len(combo) == 0 {
		return ""
	}
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+combo[k])
	}
	return strings.Join(parts, ", ")
}

package listing

import (
	"sort"
	"strings"
)

// Column selects the sort key.
type Column int

const (
	ByName Column = iota
	BySize
	ByCategory
	ByUsefulness
)

func (c Column) String() string {
	switch c {
	case ByName:
		return "name"
	case BySize:
		return "size"
	case ByCategory:
		return "category"
	case ByUsefulness:
		return "usefulness"
	default:
		return "unknown"
	}
}

// Next cycles through the columns.
func (c Column) Next() Column {
	return (c + 1) % (ByUsefulness + 1)
}

// Direction is the sort order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Sort orders entries in place. Directories always come first. When sorting
// by size, entries without a known size go last in either direction.
func Sort(entries []Entry, col Column, dir Direction) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		if col == BySize && a.Size.Known() != b.Size.Known() {
			return a.Size.Known()
		}
		c := compare(a, b, col)
		if dir == Descending {
			c = -c
		}
		return c < 0
	})
}

func compare(a, b Entry, col Column) int {
	switch col {
	case BySize:
		return cmp64(a.Size.Bytes, b.Size.Bytes)
	case ByCategory:
		return int(a.Category) - int(b.Category)
	case ByUsefulness:
		switch {
		case a.Usefulness < b.Usefulness:
			return -1
		case a.Usefulness > b.Usefulness:
			return 1
		}
		return 0
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Filter returns the entries whose name or path contains query, ignoring
// case. An empty query returns entries unchanged.
func Filter(entries []Entry, query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), query) ||
			strings.Contains(strings.ToLower(e.Path), query) {
			out = append(out, e)
		}
	}
	return out
}

// Package history keeps browser-style back/forward navigation state.
package history

import "path/filepath"

// History is an ordered list of visited directories with a cursor. The zero
// value is empty and ready to use.
type History struct {
	paths  []string
	cursor int
}

// Visit records navigation into path. Any forward entries are discarded;
// visiting the current path again is a no-op.
func (h *History) Visit(path string) {
	path = filepath.Clean(path)
	if len(h.paths) > 0 {
		if h.paths[h.cursor] == path {
			return
		}
		h.paths = h.paths[:h.cursor+1]
	}
	h.paths = append(h.paths, path)
	h.cursor = len(h.paths) - 1
}

// Current returns the directory under the cursor.
func (h *History) Current() (string, bool) {
	if len(h.paths) == 0 {
		return "", false
	}
	return h.paths[h.cursor], true
}

// CanBack reports whether Back would move.
func (h *History) CanBack() bool {
	return h.cursor > 0
}

// CanForward reports whether Forward would move.
func (h *History) CanForward() bool {
	return h.cursor < len(h.paths)-1
}

// Back moves the cursor one step back and returns the new current path.
func (h *History) Back() (string, bool) {
	if !h.CanBack() {
		return "", false
	}
	h.cursor--
	return h.paths[h.cursor], true
}

// Forward moves the cursor one step forward and returns the new current path.
func (h *History) Forward() (string, bool) {
	if !h.CanForward() {
		return "", false
	}
	h.cursor++
	return h.paths[h.cursor], true
}

// Drop removes path and everything below it from the history, for example
// after it was deleted. The cursor stays on the nearest surviving entry.
func (h *History) Drop(path string) {
	path = filepath.Clean(path)
	kept := h.paths[:0]
	cursor := 0
	for i, p := range h.paths {
		if p == path || isUnder(path, p) {
			continue
		}
		if n := len(kept); n > 0 && kept[n-1] == p {
			if i <= h.cursor {
				cursor = n - 1
			}
			continue
		}
		if i <= h.cursor {
			cursor = len(kept)
		}
		kept = append(kept, p)
	}
	h.paths = kept
	if cursor >= len(h.paths) {
		cursor = len(h.paths) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	h.cursor = cursor
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.paths)
}

func isUnder(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && rel[2] == filepath.Separator
}

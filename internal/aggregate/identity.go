package aggregate

import (
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// fileID identifies a directory independently of the path used to reach it.
type fileID struct {
	dev uint64
	ino uint64
}

// identifyByPath is used where the OS gives no inode: the fully resolved
// path stands in for it.
func identifyByPath(path string) fileID {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return fileID{ino: xxhash.Sum64String(filepath.Clean(path))}
}

// pathSet is the set of directories on the current root-to-leaf walk.
type pathSet map[fileID]struct{}

func (s pathSet) clone() pathSet {
	out := make(pathSet, len(s)+8)
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

//go:build unix

package aggregate

import (
	"io/fs"
	"syscall"
)

func identify(path string, info fs.FileInfo) fileID {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}
	}
	return identifyByPath(path)
}

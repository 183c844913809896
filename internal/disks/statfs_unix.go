//go:build linux || darwin || freebsd

package disks

import "golang.org/x/sys/unix"

func statfs(path string) (total, available uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return st.Blocks * bsize, uint64(st.Bavail) * bsize, nil
}

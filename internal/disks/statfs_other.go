//go:build !(linux || darwin || freebsd)

package disks

func statfs(string) (uint64, uint64, error) {
	return 0, 0, errUnsupported
}

// Package disks enumerates mounted filesystems with their capacity.
package disks

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tw93/diskdash/internal/logging"
)

// Disk is one mounted filesystem.
type Disk struct {
	Mount     string
	FSType    string
	Total     uint64
	Available uint64
}

// Used returns the bytes in use.
func (d Disk) Used() uint64 {
	if d.Available > d.Total {
		return 0
	}
	return d.Total - d.Available
}

// Percent returns the used share in [0,100].
func (d Disk) Percent() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Used()) / float64(d.Total) * 100
}

var errUnsupported = errors.New("disks: statfs unsupported on this platform")

// Kernel and virtual filesystems that hold no user data.
var pseudoFS = map[string]bool{
	"autofs": true, "binfmt_misc": true, "bpf": true, "cgroup": true,
	"cgroup2": true, "configfs": true, "debugfs": true, "devpts": true,
	"devtmpfs": true, "fusectl": true, "hugetlbfs": true, "mqueue": true,
	"nsfs": true, "proc": true, "pstore": true,
	"ramfs": true, "securityfs": true, "squashfs": true, "sysfs": true,
	"tmpfs": true, "tracefs": true, "devfs": true, "nullfs": true,
}

const mountsFile = "/proc/self/mounts"

// List returns the mounted filesystems sorted by mount point. Mounts that
// cannot be queried are skipped; "/" is always tried.
func List() []Disk {
	mounts := []mount{{point: "/"}}
	if f, err := os.Open(mountsFile); err == nil {
		parsed := parseMounts(f)
		f.Close()
		if len(parsed) > 0 {
			mounts = parsed
		}
	} else {
		mounts = append(mounts, volumes()...)
	}
	return disksOf(mounts)
}

// disksOf queries each distinct mount point. Bind-mounted files, as
// containers have for /etc/hosts, are not disks.
func disksOf(mounts []mount) []Disk {
	seen := make(map[string]bool, len(mounts))
	out := make([]Disk, 0, len(mounts))
	for _, m := range mounts {
		if seen[m.point] {
			continue
		}
		seen[m.point] = true
		if info, err := os.Stat(m.point); err != nil || !info.IsDir() {
			continue
		}
		total, avail, err := statfs(m.point)
		if err != nil {
			logging.Debug("statfs failed", logging.String("mount", m.point), logging.Err(err))
			continue
		}
		if total == 0 {
			continue
		}
		out = append(out, Disk{Mount: m.point, FSType: m.fstype, Total: total, Available: avail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mount < out[j].Mount })
	return out
}

type mount struct {
	point  string
	fstype string
}

// parseMounts reads fstab-format lines, dropping pseudo filesystems.
func parseMounts(r io.Reader) []mount {
	var out []mount
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		if pseudoFS[fields[2]] {
			continue
		}
		out = append(out, mount{point: unescapeMount(fields[1]), fstype: fields[2]})
	}
	return out
}

// unescapeMount decodes the octal escapes (\040 for space) the kernel uses.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// volumes lists macOS-style external volume mounts.
func volumes() []mount {
	matches, _ := filepath.Glob("/Volumes/*")
	out := make([]mount, 0, len(matches))
	for _, m := range matches {
		out = append(out, mount{point: m})
	}
	return out
}

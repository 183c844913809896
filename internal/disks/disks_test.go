package disks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMountsSkipsPseudoFilesystems(t *testing.T) {
	const sample = `/dev/nvme0n1p2 / ext4 rw,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev 0 0
/dev/sdb1 /mnt/my\040disk vfat rw 0 0
garbage
`
	got := parseMounts(strings.NewReader(sample))
	require.Len(t, got, 2)
	assert.Equal(t, mount{point: "/", fstype: "ext4"}, got[0])
	assert.Equal(t, mount{point: "/mnt/my disk", fstype: "vfat"}, got[1])
}

func TestUnescapeMount(t *testing.T) {
	assert.Equal(t, "/plain", unescapeMount("/plain"))
	assert.Equal(t, "/a b\tc", unescapeMount(`/a\040b\011c`))
	assert.Equal(t, `/trailing\04`, unescapeMount(`/trailing\04`))
}

func TestDiskUsage(t *testing.T) {
	d := Disk{Total: 200, Available: 50}
	assert.Equal(t, uint64(150), d.Used())
	assert.InDelta(t, 75.0, d.Percent(), 0.001)
	assert.Zero(t, Disk{}.Percent())
	assert.Zero(t, Disk{Total: 1, Available: 2}.Used())
}

func TestListSortedByMount(t *testing.T) {
	disks := List()
	if len(disks) == 0 {
		t.Skip("statfs unavailable")
	}
	for i := 1; i < len(disks); i++ {
		assert.Less(t, disks[i-1].Mount, disks[i].Mount)
	}
	for _, d := range disks {
		assert.NotZero(t, d.Total, d.Mount)
	}
}

func TestDisksOfSkipsFileMounts(t *testing.T) {
	dir := t.TempDir()
	hosts := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(hosts, []byte("127.0.0.1 localhost\n"), 0644))

	got := disksOf([]mount{{point: dir}, {point: hosts}, {point: dir}})
	for _, d := range got {
		assert.NotEqual(t, hosts, d.Mount)
	}
	if len(got) == 0 {
		t.Skip("statfs unavailable")
	}
	require.Len(t, got, 1)
	assert.Equal(t, dir, got[0].Mount)
}

package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestClassifyTempFileIsUseless(t *testing.T) {
	c := Default()
	cat, score := c.Classify(Input{
		Path:    "/home/ada/downloads/temp.tmp",
		Name:    "temp.tmp",
		Ext:     ".tmp",
		Size:    500 * mib,
		ModTime: now.Add(-30 * day),
		Now:     now,
	})
	assert.Equal(t, Useless, cat)
	assert.Less(t, float64(score), 10.0)
}

func TestClassifyProtectedWinsOverEverything(t *testing.T) {
	c := Default()
	for _, in := range []Input{
		{Path: "/mnt/data/$RECYCLE.BIN", Name: "$RECYCLE.BIN", IsDir: true},
		{Path: "/mnt/data/System Volume Information", Name: "System Volume Information", IsDir: true, Empty: true},
		{Path: "C:/pagefile.sys", Name: "pagefile.sys", Ext: ".sys", Size: 16 * gib},
		{Path: "/home/ada/.Trash-1000", Name: ".Trash-1000", IsDir: true},
		{Path: "/proc", Name: "proc", IsDir: true},
	} {
		cat, score := c.Classify(in)
		assert.Equal(t, MustKeep, cat, in.Path)
		assert.Equal(t, MaxScore, score, in.Path)
	}
}

func TestClassifyDriveRoots(t *testing.T) {
	c := Default("/mnt/usb")
	for _, p := range []string{"/", "C:\\", "D:", "/mnt/usb"} {
		cat, _ := c.Classify(Input{Path: p, IsDir: true})
		assert.Equal(t, MustKeep, cat, p)
	}
}

func TestClassifySystem(t *testing.T) {
	c := Default()
	tests := []Input{
		{Path: "/usr/lib/libc.so.6", Name: "libc.so.6"},
		{Path: "/home/ada/.bashrc", Name: ".bashrc"},
		{Path: "/home/ada/driver.dll", Name: "driver.dll"},
		{Path: "C:/Program Files/App/app.exe", Name: "app.exe"},
		{Path: "D:/Windows/System32/drivers", Name: "drivers", IsDir: true},
	}
	for _, in := range tests {
		cat, _ := c.Classify(in)
		assert.Equal(t, System, cat, in.Path)
	}
}

func TestClassifyUseless(t *testing.T) {
	c := Default()
	tests := []Input{
		{Path: "/home/ada/build.log", Name: "build.log"},
		{Path: "/home/ada/~$report.docx", Name: "~$report.docx"},
		{Path: "/home/ada/notes.txt~", Name: "notes.txt~"},
		{Path: "/home/ada/proj/__pycache__", Name: "__pycache__", IsDir: true},
		{Path: "/home/ada/empty", Name: "empty", IsDir: true, Empty: true},
		{Path: "/home/ada/.cache/thing.bin", Name: "thing.bin"},
	}
	for _, in := range tests {
		cat, _ := c.Classify(in)
		assert.Equal(t, Useless, cat, in.Path)
	}
}

func TestClassifyRegular(t *testing.T) {
	c := Default()
	cat, score := c.Classify(Input{Path: "/home/ada/photos", Name: "photos", IsDir: true})
	assert.Equal(t, Regular, cat)
	assert.Equal(t, NeutralScore, score)

	cat, _ = c.Classify(Input{Path: "/home/ada/report.pdf", Name: "report.pdf", Size: 200 * kib})
	assert.Equal(t, Regular, cat)
}

func TestClassifyFillsNameAndExt(t *testing.T) {
	c := Default()
	cat, _ := c.Classify(Input{Path: "/home/ada/leftover.tmp"})
	assert.Equal(t, Useless, cat)
}

func TestScoreSignals(t *testing.T) {
	c := Default()
	base := Input{Path: "/home/ada/file.dat", Name: "file.dat", Ext: ".dat", Size: 10 * mib, Now: now}

	recent := base
	recent.ModTime = now.Add(-time.Hour)
	old := base
	old.ModTime = now.Add(-2 * 365 * day)
	_, recentScore := c.Classify(recent)
	_, oldScore := c.Classify(old)
	assert.Greater(t, float64(recentScore), float64(oldScore), "recent files score higher")

	huge := base
	huge.Size = 4 * gib
	_, hugeScore := c.Classify(huge)
	_, baseScore := c.Classify(base)
	assert.Less(t, float64(hugeScore), float64(baseScore), "larger files score lower")

	hugeISO := huge
	hugeISO.Name, hugeISO.Ext, hugeISO.Path = "disk.iso", ".iso", "/home/ada/disk.iso"
	_, isoScore := c.Classify(hugeISO)
	assert.Less(t, float64(isoScore), float64(hugeScore))

	doc := base
	doc.Name, doc.Ext, doc.Path = "thesis.pdf", ".pdf", "/home/ada/thesis.pdf"
	_, docScore := c.Classify(doc)
	assert.Greater(t, float64(docScore), float64(baseScore))
}

func TestScoreDirectoryUsesAggregate(t *testing.T) {
	c := Default()
	small := Input{Path: "/home/ada/src", Name: "src", IsDir: true, Size: 10 * mib, AggregateKnown: true, Now: now}
	big := small
	big.Size = 20 * gib
	_, smallScore := c.Classify(small)
	_, bigScore := c.Classify(big)
	assert.Greater(t, float64(smallScore), float64(bigScore))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := Default()
	in := Input{Path: "/home/ada/movie.mkv", Name: "movie.mkv", Size: 3 * gib, ModTime: now.Add(-400 * day), Now: now}
	cat, score := c.Classify(in)
	for i := 0; i < 50; i++ {
		gotCat, gotScore := c.Classify(in)
		require.Equal(t, cat, gotCat)
		require.Equal(t, score, gotScore)
	}
}

func TestScoreBounds(t *testing.T) {
	c := Default()
	_, low := c.Classify(Input{Path: "/x/a.log", Size: 50 * gib, ModTime: now.Add(-5 * 365 * day), Now: now})
	_, high := c.Classify(Input{Path: "/x/a.pdf", Size: 1, ModTime: now, Now: now})
	assert.GreaterOrEqual(t, float64(low), float64(MinScore))
	assert.LessOrEqual(t, float64(high), float64(MaxScore))
}

func TestCustomPolicy(t *testing.T) {
	c := New(map[string]Category{
		"*.iso":     Useless,
		"vault":     MustKeep,
		"/srv/data": System,
	})
	cat, _ := c.Classify(Input{Path: "/home/ada/vault", IsDir: true})
	assert.Equal(t, MustKeep, cat)
	cat, _ = c.Classify(Input{Path: "/home/ada/ubuntu.iso"})
	assert.Equal(t, Useless, cat)
	cat, _ = c.Classify(Input{Path: "/srv/data", IsDir: true})
	assert.Equal(t, System, cat)
	assert.True(t, c.Protected("/home/ada/VAULT", "VAULT"))
	assert.False(t, c.Protected("/home/ada/ubuntu.iso", "ubuntu.iso"))
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"MustKeep":  MustKeep,
		"protected": MustKeep,
		" system ":  System,
		"REGULAR":   Regular,
		"useless":   Useless,
	} {
		got, ok := ParseCategory(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseCategory("junk")
	assert.False(t, ok)
}

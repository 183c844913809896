package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tw93/diskdash/internal/classify"
	"github.com/tw93/diskdash/internal/listing"
)

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b)

	if m.deleteConfirm && m.deleteTarget != nil {
		fmt.Fprintln(&b, warnStyle.Render(fmt.Sprintf(
			"Delete: %s (%s)? Press Delete again to confirm, ESC to cancel",
			m.deleteTarget.Name, sizeText(m.deleteTarget.Size))))
		fmt.Fprintln(&b)
	}

	if m.isOverview {
		m.viewOverview(&b)
	} else {
		m.viewListing(&b)
	}

	fmt.Fprintln(&b)
	m.viewStatus(&b)
	fmt.Fprintln(&b, grayStyle.Render(m.help()))
	return b.String()
}

func (m model) viewOverview(b *strings.Builder) {
	fmt.Fprintln(b, titleStyle.Render("Analyze Disk"))
	fmt.Fprintln(b, grayStyle.Render("Select a disk to explore:"))
	fmt.Fprintln(b)

	if len(m.disks) == 0 {
		fmt.Fprintln(b, "  No disks found")
		return
	}
	for idx, d := range m.disks {
		percent := d.Percent()
		bar := coloredProgressBar(int64(d.Used()), int64(d.Total), percent)
		name := padName(trimName(d.Mount), nameWidth)
		prefix, nameSegment := rowPrefix(idx == m.selected, "💾", name)
		fmt.Fprintf(b, "%s%2d. %s %5.1f%%  |  %s %s\n",
			prefix, idx+1, bar, percent, nameSegment,
			grayStyle.Render(fmt.Sprintf("%s / %s",
				humanize.IBytes(d.Used()), humanize.IBytes(d.Total))))
	}
}

func (m model) viewListing(b *strings.Builder) {
	header := titleStyle.Render("Analyze Disk") + "  " + grayStyle.Render(displayPath(m.dir))
	header += fmt.Sprintf("  |  Total: %s", humanize.IBytes(uint64(m.total)))
	if q := m.filter.Value(); q != "" || m.filtering {
		header += "  |  " + m.filter.View()
	}
	fmt.Fprintln(b, header)
	fmt.Fprintln(b, grayStyle.Render(fmt.Sprintf("Sorted by %s %s", m.sortCol, arrow(m.sortDir))))
	fmt.Fprintln(b)

	if len(m.rows) == 0 {
		if m.filter.Value() != "" {
			fmt.Fprintln(b, "  No matches")
		} else {
			fmt.Fprintln(b, "  Empty directory")
		}
		return
	}

	maxSize := int64(1)
	for _, e := range m.rows {
		if e.Size.Known() && e.Size.Bytes > maxSize {
			maxSize = e.Size.Bytes
		}
	}

	start := max(m.offset, 0)
	end := min(start+entryViewport, len(m.rows))
	for idx := start; idx < end; idx++ {
		e := m.rows[idx]
		icon := "📄"
		switch {
		case e.Symlink:
			icon = "🔗"
		case e.IsDir:
			icon = "📁"
		}

		var percent float64
		percentStr := "  --  "
		if e.Size.Known() && m.total > 0 {
			percent = float64(e.Size.Bytes) / float64(m.total) * 100
			percentStr = fmt.Sprintf("%5.1f%%", percent)
		}
		barValue := int64(0)
		if e.Size.Known() {
			barValue = e.Size.Bytes
		}
		bar := coloredProgressBar(barValue, maxSize, percent)

		prefix, nameSegment := rowPrefix(idx == m.selected, icon, padName(trimName(e.Name), nameWidth))
		size := sizeStyle(e.Size, percent).Render(fmt.Sprintf("%10s", sizeText(e.Size)))
		if m.eng.Unmeasurable(e.Path) {
			size = redStyle.Render(fmt.Sprintf("%10s", sizeText(e.Size)+"!"))
		}
		fmt.Fprintf(b, "%s%2d. %s %s  |  %s %s  %s\n",
			prefix, idx+1, bar, percentStr, nameSegment, size, categoryLabel(e))
	}
}

func (m model) viewStatus(b *strings.Builder) {
	pending := m.eng.Pending()
	if pending == 0 {
		if m.status != "" {
			fmt.Fprintln(b, grayStyle.Render(m.status))
		}
		return
	}

	files, dirs, bytes, current := m.eng.Progress().Snapshot()
	fmt.Fprintf(b, "%s Measuring %s dirs: %s files, %s dirs, %s\n",
		m.spinner.View(),
		yellowStyle.Render(humanize.Comma(int64(pending))),
		yellowStyle.Render(humanize.Comma(files)),
		yellowStyle.Render(humanize.Comma(dirs)),
		greenStyle.Render(humanize.IBytes(uint64(bytes))))
	if current != "" {
		short := displayPath(current)
		if len(short) > maxStatusPath {
			short = "..." + short[len(short)-maxStatusPath+3:]
		}
		fmt.Fprintln(b, grayStyle.Render(short))
	}
}

func (m model) help() string {
	switch {
	case m.filtering:
		return "  Type to filter  |  Enter Keep  |  Esc Clear"
	case m.isOverview:
		return "  ↑↓ Navigate  |  Enter Explore  |  ] Return  |  o Open  |  r Refresh  |  q Quit"
	}
	nav := "  ↑↓→ Navigate"
	if m.eng.CanBack() {
		nav = "  ↑↓←→ Navigate"
	}
	if m.eng.CanForward() {
		nav += "  |  ] Forward"
	}
	return nav + "  |  s/S Sort  |  / Filter  |  r Refresh  |  R Retry  |  o Open  |  ⌫ Delete  |  d Disks  |  q Quit"
}

func rowPrefix(selected bool, icon, name string) (prefix, segment string) {
	if selected {
		return " " + selectorStyle.Render("▶") + "  ", boldStyle.Render(icon + " " + name)
	}
	return "    ", icon + " " + name
}

func arrow(d listing.Direction) string {
	if d == listing.Descending {
		return "↓"
	}
	return "↑"
}

func sizeStyle(s listing.Size, percent float64) lipgloss.Style {
	if !s.Known() {
		return grayStyle
	}
	switch {
	case percent >= 50:
		return redStyle
	case percent >= 20:
		return yellowStyle
	case percent >= 5:
		return cyanStyle
	default:
		return grayStyle
	}
}

func categoryLabel(e listing.Entry) string {
	score := fmt.Sprintf("%3.0f", float64(e.Usefulness))
	switch e.Category {
	case classify.MustKeep:
		return redStyle.Render("keep   " + score)
	case classify.System:
		return yellowStyle.Render("system " + score)
	case classify.Useless:
		return greenStyle.Render("junk   " + score)
	default:
		return grayStyle.Render("       " + score)
	}
}

func displayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return strings.Replace(path, home, "~", 1)
	}
	return path
}

func coloredProgressBar(value, max int64, percent float64) string {
	if max <= 0 {
		return grayStyle.Render(strings.Repeat("░", barWidth))
	}

	filled := int((value * int64(barWidth)) / max)
	if filled > barWidth {
		filled = barWidth
	}

	var style lipgloss.Style
	switch {
	case percent >= 50:
		style = redStyle
	case percent >= 20:
		style = yellowStyle
	case percent >= 5:
		style = cyanStyle
	default:
		style = greenStyle
	}

	var bar strings.Builder
	for i := 0; i < filled; i++ {
		if i < filled-1 {
			bar.WriteString("█")
			continue
		}
		// Last filled character might be partial
		remainder := (value * int64(barWidth)) % max
		switch {
		case remainder > max/2:
			bar.WriteString("█")
		case remainder > max/4:
			bar.WriteString("▓")
		default:
			bar.WriteString("▒")
		}
	}
	return style.Render(bar.String()) + grayStyle.Render(strings.Repeat("░", barWidth-filled))
}

func trimName(name string) string {
	const ellipsis = "..."
	if lipgloss.Width(name) <= nameWidth {
		return name
	}
	runes := []rune(name)
	for j := len(runes) - 1; j > 0; j-- {
		candidate := string(runes[:j]) + ellipsis
		if lipgloss.Width(candidate) <= nameWidth {
			return candidate
		}
	}
	return ellipsis
}

func padName(name string, targetWidth int) string {
	currentWidth := lipgloss.Width(name)
	if currentWidth >= targetWidth {
		return name
	}
	return name + strings.Repeat(" ", targetWidth-currentWidth)
}

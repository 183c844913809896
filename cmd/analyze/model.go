package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/tw93/diskdash/internal/disks"
	"github.com/tw93/diskdash/internal/engine"
	"github.com/tw93/diskdash/internal/listing"
	"github.com/tw93/diskdash/internal/logging"
)

type tickMsg time.Time

type openResultMsg struct {
	path string
	err  error
}

type model struct {
	eng *engine.Engine

	dir      string
	rows     []listing.Entry
	total    int64
	selected int
	offset   int
	status   string

	spinner   spinner.Model
	filter    textinput.Model
	filtering bool

	isOverview bool
	disks      []disks.Disk

	sortCol listing.Column
	sortDir listing.Direction

	deleteConfirm bool
	deleteTarget  *listing.Entry
}

func newModel(eng *engine.Engine, path string) model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by name or path"

	m := model{
		eng:     eng,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(cyanStyle)),
		filter:  ti,
		sortCol: listing.BySize,
		sortDir: listing.Descending,
	}

	if path == "" {
		m.showOverview()
		return m
	}
	if !m.open(path) {
		status := m.status
		m.showOverview()
		m.status = status
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKey(msg)
	case tickMsg:
		if updates := m.eng.Poll(); len(updates) > 0 && !m.isOverview {
			m.reload()
		}
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case openResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Failed to open %s: %v", displayPath(msg.path), msg.err)
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.reload()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.reload()
	return m, cmd
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle delete confirmation
	if m.deleteConfirm {
		target := m.deleteTarget
		m.deleteConfirm = false
		m.deleteTarget = nil
		if target == nil || (msg.String() != "delete" && msg.String() != "backspace") {
			m.status = "Cancelled"
			return m, nil
		}
		if err := m.eng.Delete(target.Path); err != nil {
			m.status = fmt.Sprintf("Failed to delete: %v", err)
			return m, nil
		}
		m.status = fmt.Sprintf("Deleted %s", target.Name)
		if _, ok := m.eng.Current(); !ok {
			m.showOverview()
			return m, nil
		}
		m.reload()
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.reload()
			return m, nil
		}
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
			if m.selected < m.offset {
				m.offset = m.selected
			}
		}
	case "down", "j":
		if m.selected < m.rowCount()-1 {
			m.selected++
			if m.selected >= m.offset+entryViewport {
				m.offset = m.selected - entryViewport + 1
			}
		}
	case "enter", "right", "l":
		return m.enterSelected()
	case "b", "left", "h":
		if m.isOverview {
			return m, nil
		}
		from := m.dir
		l, err := m.eng.Back()
		if errors.Is(err, engine.ErrNoHistory) {
			m.showOverview()
			return m, nil
		}
		if err != nil {
			m.status = fmt.Sprintf("Cannot go back: %v", err)
			return m, nil
		}
		m.show(l, from)
		m.status = displayPath(m.dir)
	case "]":
		if m.isOverview {
			// Leave the overview for the directory it was entered from.
			if l, ok := m.eng.Current(); ok {
				m.isOverview = false
				m.show(l, "")
				m.status = displayPath(m.dir)
			}
			return m, nil
		}
		l, err := m.eng.Forward()
		if err != nil {
			if !errors.Is(err, engine.ErrNoHistory) {
				m.status = fmt.Sprintf("Cannot go forward: %v", err)
			}
			return m, nil
		}
		m.show(l, "")
		m.status = displayPath(m.dir)
	case "d":
		m.showOverview()
	case "r":
		if m.isOverview {
			m.showOverview()
			return m, nil
		}
		l, err := m.eng.Refresh()
		if err != nil {
			m.status = fmt.Sprintf("Refresh failed: %v", err)
			return m, nil
		}
		m.show(l, m.selectedPath())
		m.status = "Refreshing..."
	case "R":
		if e, ok := m.selectedEntry(); ok && e.IsDir && m.eng.Unmeasurable(e.Path) {
			if m.eng.RequestSize(e.Path) {
				m.reload()
				m.status = fmt.Sprintf("Measuring %s...", e.Name)
			}
		}
	case "s":
		m.sortCol = m.sortCol.Next()
		m.reload()
		m.status = fmt.Sprintf("Sorted by %s", m.sortCol)
	case "S":
		if m.sortDir == listing.Ascending {
			m.sortDir = listing.Descending
		} else {
			m.sortDir = listing.Ascending
		}
		m.reload()
	case "/":
		if m.isOverview {
			return m, nil
		}
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case "o":
		if m.isOverview {
			if m.selected < len(m.disks) {
				return m, openCmd(m.disks[m.selected].Mount)
			}
			return m, nil
		}
		if e, ok := m.selectedEntry(); ok {
			m.status = fmt.Sprintf("Opening %s...", e.Name)
			return m, openCmd(e.Path)
		}
	case "delete", "backspace":
		if e, ok := m.selectedEntry(); ok {
			m.deleteConfirm = true
			m.deleteTarget = &e
		}
	}
	return m, nil
}

func (m model) enterSelected() (tea.Model, tea.Cmd) {
	if m.isOverview {
		if m.selected < len(m.disks) {
			m.open(m.disks[m.selected].Mount)
		}
		return m, nil
	}
	e, ok := m.selectedEntry()
	if !ok {
		return m, nil
	}
	if !e.IsDir {
		m.status = fmt.Sprintf("File: %s (%s)", e.Name, sizeText(e.Size))
		return m, nil
	}
	m.open(e.Path)
	return m, nil
}

// open navigates into path and reports whether the view changed.
func (m *model) open(path string) bool {
	l, err := m.eng.Open(path)
	switch {
	case errors.Is(err, engine.ErrEmptyDirectory):
		m.status = fmt.Sprintf("%s is empty", displayPath(path))
		return false
	case err != nil:
		logging.Debug("open failed", logging.String("path", path), logging.Err(err))
		m.status = fmt.Sprintf("Cannot open %s: %v", displayPath(path), err)
		return false
	}
	m.isOverview = false
	m.filter.SetValue("")
	m.show(l, "")
	m.status = displayPath(m.dir)
	return true
}

func (m *model) showOverview() {
	m.isOverview = true
	m.disks = m.eng.Disks()
	m.selected = 0
	m.offset = 0
	m.deleteConfirm = false
	m.deleteTarget = nil
	m.status = "Select a disk to explore"
	if len(m.disks) == 0 {
		m.status = "No disks found"
	}
}

// reload refreshes rows from the engine's current listing, keeping the
// selected entry.
func (m *model) reload() {
	if m.isOverview {
		return
	}
	l, ok := m.eng.Current()
	if !ok {
		return
	}
	m.show(l, m.selectedPath())
}

// show filters and sorts l, then selects keep if present.
func (m *model) show(l listing.Listing, keep string) {
	m.dir = l.Dir
	m.total = sumKnownSizes(l.Entries)
	rows := listing.Filter(l.Entries, m.filter.Value())
	listing.Sort(rows, m.sortCol, m.sortDir)
	m.rows = rows

	m.selected = 0
	if keep != "" {
		for i := range rows {
			if rows[i].Path == keep {
				m.selected = i
				break
			}
		}
	}
	m.clampSelection()
}

func (m *model) clampSelection() {
	n := m.rowCount()
	if n == 0 {
		m.selected = 0
		m.offset = 0
		return
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.offset > m.selected {
		m.offset = m.selected
	}
	if m.selected >= m.offset+entryViewport {
		m.offset = m.selected - entryViewport + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m model) rowCount() int {
	if m.isOverview {
		return len(m.disks)
	}
	return len(m.rows)
}

func (m model) selectedEntry() (listing.Entry, bool) {
	if m.isOverview || m.selected >= len(m.rows) {
		return listing.Entry{}, false
	}
	return m.rows[m.selected], true
}

func (m model) selectedPath() string {
	if e, ok := m.selectedEntry(); ok {
		return e.Path
	}
	return ""
}

func sumKnownSizes(entries []listing.Entry) int64 {
	var total int64
	for _, e := range entries {
		if e.Size.Known() {
			total += e.Size.Bytes
		}
	}
	return total
}

func sizeText(s listing.Size) string {
	switch s.State {
	case listing.SizePending:
		return "pending.."
	case listing.SizeUnknown:
		return "--"
	}
	text := humanize.IBytes(uint64(max(s.Bytes, 0)))
	if s.Truncated {
		text = ">" + text
	}
	return text
}

func openCmd(path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), openCommandTimeout)
		defer cancel()
		name, args := opener(path)
		err := exec.CommandContext(ctx, name, args...).Run()
		return openResultMsg{path: path, err: err}
	}
}

func opener(path string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

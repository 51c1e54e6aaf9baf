package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type scanStreamMsg struct {
	ID int
	Ch <-chan tea.Msg
}

type scanRowMsg struct {
	ID    int
	Entry entry
}

type scanProgressMsg struct {
	ID      int
	Visited int
	Found   int
}

type scanFinishedMsg struct {
	ID        int
	Warnings  []string
	Err       error
	Elapsed   time.Duration
	Visited   int
	Found     int
	Cancelled bool
}

type scanPulseMsg struct{}

type deleteResultMsg struct {
	Path string
	Err  error
}

type sortMode int

const (
	sortByDiscovery sortMode = iota
	sortBySizeDesc
	sortBySizeAsc
	sortByNameAsc
)

func (m sortMode) String() string {
	switch m {
	case sortBySizeDesc:
		return "size ↓"
	case sortBySizeAsc:
		return "size ↑"
	case sortByNameAsc:
		return "name"
	default:
		return "discovery"
	}
}

func nextSortMode(current sortMode) sortMode {
	switch current {
	case sortByDiscovery:
		return sortBySizeDesc
	case sortBySizeDesc:
		return sortBySizeAsc
	case sortBySizeAsc:
		return sortByNameAsc
	default:
		return sortByDiscovery
	}
}

// uiMode is the interaction state. Scanning is not a mode of its own: the
// list stays live and interactive while the scanner is still streaming, so
// an in-flight scan is tracked by the scanning flag instead.
type uiMode int

const (
	modeBrowse uiMode = iota
	modeConfirm
	modeDelete
)

type keyMap struct {
	Toggle     key.Binding
	SelectSafe key.Binding
	SelectAll  key.Binding
	Delete     key.Binding
	Sort       key.Binding
	Rescan     key.Binding
	Cancel     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys("space"),
			key.WithHelp("space", "toggle"),
		),
		SelectSafe: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all safe"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "all incl ⚠"),
		),
		Delete: key.NewBinding(
			key.WithKeys("enter", "d"),
			key.WithHelp("enter/d", "delete selected"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SelectSafe, k.SelectAll, k.Delete, k.Sort, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.SelectSafe, k.SelectAll, k.Delete},
		{k.Sort, k.Rescan, k.Cancel, k.Help, k.Quit},
	}
}

type model struct {
	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	session  *scanSession
	order    []int // visible row -> session entry index; deleted rows dropped
	sortMode sortMode
	mode     uiMode

	scanning  bool
	err       error
	lastScan  time.Duration
	lastEvent string
	width     int
	height    int

	scanOpts     ScanOptions
	scanID       int
	baseCtx      context.Context
	baseCancel   context.CancelFunc
	scanCtx      context.Context
	scanCancel   context.CancelFunc
	scanStream   <-chan tea.Msg
	scanVisited  int
	scanFound    int
	scanStart    time.Time
	scanPulse    float64
	scanPulseDir float64
	scanProgress progress.Model

	confirm *huh.Form

	deleteProgress  progress.Model
	deleteQueue     []string
	deleteTotal     int
	deleteDone      int
	deleteErrors    int
	deleteCancelled bool
	passFreed       int64
	freedBytes      int64
	deletedCount    int
}

func NewModel(ctx context.Context, opts ScanOptions) model {
	baseCtx, baseCancel := context.WithCancel(ctx)
	scanCtx, scanCancel := context.WithCancel(baseCtx)

	columns := []table.Column{
		{Title: "Sel", Width: 4},
		{Title: "Path", Width: 54},
		{Title: "Modified", Width: 14},
		{Title: "Size", Width: 10},
		{Title: "Status", Width: 18},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)

	tableStyles := table.DefaultStyles()
	tableStyles.Header = tableStyles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	tableStyles.Selected = tableStyles.Selected.
		Foreground(colorRowFg).
		Background(colorRowBg).
		Bold(true)
	t.SetStyles(tableStyles)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	scanBar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	deleteBar := progress.New(progress.WithDefaultGradient())

	return model{
		table:          t,
		spinner:        sp,
		help:           help.New(),
		keys:           newKeyMap(),
		session:        newScanSession(),
		sortMode:       sortByDiscovery,
		scanning:       true,
		scanOpts:       opts,
		scanID:         1,
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
		scanCtx:        scanCtx,
		scanCancel:     scanCancel,
		scanStart:      time.Now(),
		scanPulseDir:   1,
		scanProgress:   scanBar,
		deleteProgress: deleteBar,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanStartCmd(m.scanCtx, m.scanOpts, m.scanID), scanPulseCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Stream and lifecycle messages are handled regardless of mode: scan
	// results keep landing while the confirm dialog is up or a delete pass
	// is running.
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.updateLayout(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		updated, cmd := m.deleteProgress.Update(msg)
		if next, ok := updated.(progress.Model); ok {
			m.deleteProgress = next
		}
		return m, cmd
	case scanStreamMsg, scanRowMsg, scanProgressMsg, scanFinishedMsg, scanPulseMsg:
		return m.updateScanMsg(msg)
	case deleteResultMsg:
		return m.updateDeleteResult(msg)
	}

	switch m.mode {
	case modeConfirm:
		return m.updateConfirm(msg)
	case modeDelete:
		return m.updateDeleting(msg)
	default:
		return m.updateBrowse(msg)
	}
}

func (m model) updateScanMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case scanStreamMsg:
		if msg.ID != m.scanID {
			break
		}
		m.scanStream = msg.Ch
		cmds = append(cmds, waitScanMsg(msg.Ch))
	case scanRowMsg:
		if msg.ID != m.scanID {
			break
		}
		if e := m.session.record(msg.Entry); e != nil {
			m.rebuildOrder()
			m.setTableRows()
			m.lastEvent = "Found: " + e.RelPath
		}
		if m.scanStream != nil {
			cmds = append(cmds, waitScanMsg(m.scanStream))
		}
	case scanProgressMsg:
		if msg.ID != m.scanID {
			break
		}
		m.scanVisited = msg.Visited
		m.scanFound = msg.Found
		if m.scanStream != nil {
			cmds = append(cmds, waitScanMsg(m.scanStream))
		}
	case scanFinishedMsg:
		if msg.ID != m.scanID {
			break
		}
		m.scanning = false
		m.err = msg.Err
		m.session.finish(msg.Warnings, msg.Cancelled)
		m.lastScan = msg.Elapsed
		m.scanVisited = msg.Visited
		m.scanFound = msg.Found
		m.rebuildOrder()
		m.setTableRows()
		switch {
		case msg.Err != nil:
			m.lastEvent = fmt.Sprintf("Scan failed: %v", msg.Err)
		case msg.Cancelled:
			m.lastEvent = fmt.Sprintf("Scan cancelled after %d directories", msg.Visited)
		default:
			m.lastEvent = fmt.Sprintf("Scan complete: %d node_modules, %s",
				len(m.session.entries), humanize.Bytes(uint64(m.session.totalBytes)))
		}
		slog.Info("scan finished",
			"found", len(m.session.entries),
			"visited", msg.Visited,
			"warnings", len(msg.Warnings),
			"cancelled", msg.Cancelled,
			"elapsed", msg.Elapsed.String(),
			"error", fmt.Sprint(msg.Err))
	case scanPulseMsg:
		if m.scanning {
			m.scanPulse += 0.06 * m.scanPulseDir
			if m.scanPulse >= 1 {
				m.scanPulse = 1
				m.scanPulseDir = -1
			} else if m.scanPulse <= 0 {
				m.scanPulse = 0
				m.scanPulseDir = 1
			}
			cmds = append(cmds, scanPulseCmd())
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMsg.String() == "ctrl+c":
			m.baseCancel()
			return m, tea.Quit
		case key.Matches(keyMsg, m.keys.Cancel):
			m.closeConfirm("Deletion cancelled")
			return m, nil
		}
	}

	if m.confirm == nil {
		m.mode = modeBrowse
		return m, nil
	}

	form, cmd := m.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.confirm = f
	}

	switch m.confirm.State {
	case huh.StateAborted:
		m.closeConfirm("Deletion cancelled")
		return m, cmd
	case huh.StateCompleted:
		confirmed := m.confirm.GetBool("confirm")
		if !confirmed {
			m.closeConfirm("Deletion cancelled")
			return m, cmd
		}
		m.closeConfirm("")
		return m, tea.Batch(cmd, m.startDelete())
	}

	return m, cmd
}

func (m *model) closeConfirm(event string) {
	m.confirm = nil
	m.mode = modeBrowse
	if event != "" {
		m.lastEvent = event
	}
	m.resize()
}

func (m model) updateDeleting(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.deleteCancelled = true
		m.baseCancel()
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Cancel):
		if !m.deleteCancelled {
			m.deleteCancelled = true
			m.lastEvent = "Stopping after the current entry…"
		}
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Matched bindings return early so the table never sees them; bubbles
	// binds d, u and g for paging and those would fire twice otherwise.
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Quit):
			m.baseCancel()
			return m, tea.Quit
		case key.Matches(keyMsg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			return m, nil
		case key.Matches(keyMsg, m.keys.Cancel):
			if m.scanning {
				// The stream winds down on its own once the context is
				// cancelled; bumping the ID makes any straggler messages
				// stale so the UI can move on immediately.
				m.scanCancel()
				m.scanID++
				m.scanning = false
				m.session.finish(nil, true)
				m.lastEvent = fmt.Sprintf("Scan cancelled after %d directories", m.scanVisited)
			}
			return m, nil
		case key.Matches(keyMsg, m.keys.Rescan):
			next, cmds := m.startScan()
			return next, tea.Batch(cmds...)
		case key.Matches(keyMsg, m.keys.Sort):
			m.sortMode = nextSortMode(m.sortMode)
			m.rebuildOrder()
			m.setTableRows()
			m.lastEvent = "Sorted by " + m.sortMode.String()
			return m, nil
		case key.Matches(keyMsg, m.keys.Toggle):
			m.toggleCurrent()
			return m, nil
		case key.Matches(keyMsg, m.keys.SelectSafe):
			m.selectAllSafe()
			return m, nil
		case key.Matches(keyMsg, m.keys.SelectAll):
			m.selectAllForce()
			return m, nil
		case key.Matches(keyMsg, m.keys.Delete):
			return m, m.requestDelete()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) updateDeleteResult(msg deleteResultMsg) (tea.Model, tea.Cmd) {
	cmd := m.applyDeleteResult(msg)
	m.rebuildOrder()
	m.setTableRows()
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	content := ui.base.Render(m.table.View())
	view := lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		content,
		m.statusView(),
		m.footerView(),
	)
	return ui.container.Render(view)
}

func (m *model) updateLayout(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	if width < 60 {
		width = 60
	}
	if height < 12 {
		height = 12
	}
	if m.width == width && m.height == height {
		return
	}
	m.width = width
	m.height = height
	m.resize()
}

func (m *model) resize() {
	if m.width == 0 {
		return
	}

	selWidth := 4
	modifiedWidth := 14
	sizeWidth := 10
	statusWidth := 18
	pathWidth := max(m.width-selWidth-modifiedWidth-sizeWidth-statusWidth-12, 20)

	m.table.SetColumns([]table.Column{
		{Title: "Sel", Width: selWidth},
		{Title: "Path", Width: pathWidth},
		{Title: "Modified", Width: modifiedWidth},
		{Title: "Size", Width: sizeWidth},
		{Title: "Status", Width: statusWidth},
	})

	headerHeight := lipgloss.Height(m.headerView())
	statusHeight := lipgloss.Height(m.statusView())
	footerHeight := lipgloss.Height(m.footerView())
	available := max(m.height-headerHeight-statusHeight-footerHeight-4, 5)
	m.table.SetHeight(available)
	m.table.SetWidth(m.width - 4)
	progressWidth := max(m.width-28, 20)
	m.scanProgress.Width = progressWidth
	m.deleteProgress.Width = progressWidth
}

func (m model) startScan() (model, []tea.Cmd) {
	if m.scanCancel != nil {
		m.scanCancel()
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.scanCtx = ctx
	m.scanCancel = cancel
	m.scanID++
	m.scanning = true
	m.err = nil
	m.session = newScanSession()
	m.order = nil
	m.scanVisited = 0
	m.scanFound = 0
	m.lastScan = 0
	m.freedBytes = 0
	m.deletedCount = 0
	m.deleteErrors = 0
	m.scanStart = time.Now()
	m.scanPulse = 0
	m.scanPulseDir = 1
	m.lastEvent = "Scanning…"
	m.setTableRows()
	slog.Info("scan started", "root", m.scanOpts.Root, "scan_id", m.scanID)

	cmds := []tea.Cmd{m.spinner.Tick, scanStartCmd(ctx, m.scanOpts, m.scanID), scanPulseCmd()}
	return m, cmds
}

func (m model) headerView() string {
	title := ui.title.Render("nodekill")
	chip := ui.chip.Render(fmt.Sprintf("%d found", len(m.session.entries)))
	subtitle := ui.subtitle.Render("Find and delete node_modules directories")
	root := ui.muted.Render(fmt.Sprintf("Root: %s", m.scanOpts.Root))
	line := lipgloss.JoinHorizontal(lipgloss.Top, title, " ", chip)
	return ui.header.Render(lipgloss.JoinVertical(lipgloss.Left, line,
		lipgloss.JoinHorizontal(lipgloss.Top, subtitle, " · ", root)))
}

func (m model) statusView() string {
	var lines []string

	if m.scanning {
		elapsed := time.Since(m.scanStart).Truncate(100 * time.Millisecond)
		line := fmt.Sprintf("%s Scanning… visited %d · found %d · total %s · %s",
			m.spinner.View(), m.scanVisited, m.scanFound,
			humanize.Bytes(uint64(m.session.totalBytes)), elapsed)
		lines = append(lines, ui.status.Render(line), ui.muted.Render(m.scanProgress.ViewAs(m.scanPulse)))
	} else {
		remaining, selected, selectedBytes := m.stats()
		parts := []string{
			fmt.Sprintf("Items: %d", len(m.order)),
			fmt.Sprintf("Total: %s", humanize.Bytes(uint64(remaining))),
			fmt.Sprintf("Selected: %d (%s)", selected, humanize.Bytes(uint64(selectedBytes))),
			fmt.Sprintf("Sort: %s", m.sortMode.String()),
		}
		if m.deletedCount > 0 {
			parts = append(parts, fmt.Sprintf("Deleted: %d", m.deletedCount))
		}
		if m.freedBytes > 0 {
			parts = append(parts, fmt.Sprintf("Freed: %s", humanize.Bytes(uint64(m.freedBytes))))
		}
		if m.deleteErrors > 0 {
			parts = append(parts, ui.danger.Render(fmt.Sprintf("Failed: %d", m.deleteErrors)))
		}
		if m.lastScan > 0 {
			parts = append(parts, fmt.Sprintf("Scan: %s", m.lastScan.Truncate(10*time.Millisecond)))
		}
		if n := len(m.session.warnings); n > 0 {
			parts = append(parts, ui.warning.Render(fmt.Sprintf("Warnings: %d", n)))
		}
		status := strings.Join(parts, " · ")
		if m.err != nil {
			status = ui.danger.Render(fmt.Sprintf("Error: %v", m.err))
		}
		lines = append(lines, ui.status.Render(status))
	}

	if m.mode == modeDelete {
		progressLine := fmt.Sprintf("Deleting %d/%d · freed %s",
			m.deleteDone, m.deleteTotal, humanize.Bytes(uint64(m.passFreed)))
		lines = append(lines, ui.muted.Render(progressLine), ui.muted.Render(m.deleteProgress.View()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m model) footerView() string {
	if m.mode == modeConfirm && m.confirm != nil {
		return m.confirm.View()
	}
	if m.lastEvent != "" {
		return lipgloss.JoinVertical(lipgloss.Left, ui.muted.Render(m.lastEvent), m.help.View(m.keys))
	}
	return m.help.View(m.keys)
}

// rebuildOrder recomputes the visible row list: deleted entries drop out,
// the rest follow the active sort. Session order itself never changes.
func (m *model) rebuildOrder() {
	order := make([]int, 0, len(m.session.entries))
	for idx, e := range m.session.entries {
		if e.Status == statusDeleted {
			continue
		}
		order = append(order, idx)
	}
	m.order = order
	m.sortOrder()
}

func (m *model) sortOrder() {
	if m.sortMode == sortByDiscovery {
		sort.Ints(m.order)
		return
	}
	entries := m.session.entries
	sort.SliceStable(m.order, func(i, j int) bool {
		left := entries[m.order[i]]
		right := entries[m.order[j]]
		switch m.sortMode {
		case sortBySizeAsc:
			if left.SizeBytes == right.SizeBytes {
				return strings.ToLower(left.RelPath) < strings.ToLower(right.RelPath)
			}
			return left.SizeBytes < right.SizeBytes
		case sortByNameAsc:
			return strings.ToLower(left.RelPath) < strings.ToLower(right.RelPath)
		default:
			if left.SizeBytes == right.SizeBytes {
				return strings.ToLower(left.RelPath) < strings.ToLower(right.RelPath)
			}
			return left.SizeBytes > right.SizeBytes
		}
	})
}

func (m *model) setTableRows() {
	rows := make([]table.Row, 0, len(m.order))
	for _, idx := range m.order {
		e := m.session.entries[idx]
		rows = append(rows, table.Row{
			checkboxCell(e),
			pathCell(e),
			ageCell(e),
			humanize.Bytes(uint64(e.SizeBytes)),
			statusCell(e),
		})
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func checkboxCell(e *entry) string {
	if !e.Selected {
		return ui.muted.Render("[ ]")
	}
	if e.Sensitive {
		return ui.warning.Render("[x]")
	}
	return ui.accent.Render("[x]")
}

func pathCell(e *entry) string {
	if e.Sensitive {
		return ui.danger.Render("⚠ ") + e.RelPath
	}
	return e.RelPath
}

func ageCell(e *entry) string {
	if e.ModTime.IsZero() {
		return ui.muted.Render("–")
	}
	return humanize.Time(e.ModTime)
}

func statusCell(e *entry) string {
	switch e.Status {
	case statusDeleting:
		return ui.warning.Render("deleting…")
	case statusDeleted:
		return ui.muted.Render("deleted")
	case statusFailed:
		return ui.danger.Render("failed: " + e.Failure)
	default:
		if e.Failure != "" {
			return ui.warning.Render("retry queued")
		}
		if e.Sensitive {
			return ui.warning.Render("sensitive")
		}
		return ui.muted.Render("ready")
	}
}

func (m model) currentEntry() *entry {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.order) {
		return nil
	}
	return m.session.entries[m.order[cursor]]
}

// toggleCurrent flips the selection under the cursor. Entries whose status
// has left pending are locked, with one exception: toggling a failed entry
// re-queues it for another attempt.
func (m *model) toggleCurrent() {
	e := m.currentEntry()
	if e == nil {
		return
	}
	switch e.Status {
	case statusPending:
		e.Selected = !e.Selected
		if e.Selected {
			m.lastEvent = "Selected"
		} else {
			m.lastEvent = "Unselected"
		}
	case statusFailed:
		e.Status = statusPending
		e.Selected = true
		m.lastEvent = "Queued failed entry for retry"
	default:
		return
	}
	m.setTableRows()
}

// selectAllSafe selects every safe pending entry, or clears them all when
// none is missing from the selection. Sensitive entries are untouched.
func (m *model) selectAllSafe() {
	eligible := false
	anyUnselected := false
	for _, e := range m.session.entries {
		if e.Status != statusPending || e.Sensitive {
			continue
		}
		eligible = true
		if !e.Selected {
			anyUnselected = true
		}
	}
	if !eligible {
		m.lastEvent = "No safe entries"
		return
	}
	for _, e := range m.session.entries {
		if e.Status != statusPending || e.Sensitive {
			continue
		}
		e.Selected = anyUnselected
	}
	if anyUnselected {
		m.lastEvent = "Selected all safe entries"
	} else {
		m.lastEvent = "Cleared safe selections"
	}
	m.setTableRows()
}

// selectAllForce is selectAllSafe over every pending entry, sensitive ones
// included.
func (m *model) selectAllForce() {
	eligible := false
	anyUnselected := false
	for _, e := range m.session.entries {
		if e.Status != statusPending {
			continue
		}
		eligible = true
		if !e.Selected {
			anyUnselected = true
		}
	}
	if !eligible {
		m.lastEvent = "Nothing to select"
		return
	}
	for _, e := range m.session.entries {
		if e.Status != statusPending {
			continue
		}
		e.Selected = anyUnselected
	}
	if anyUnselected {
		m.lastEvent = "Selected everything, sensitive entries included"
	} else {
		m.lastEvent = "Cleared selections"
	}
	m.setTableRows()
}

func (m model) selectedIndices() []int {
	var selected []int
	for idx, e := range m.session.entries {
		if e.Status == statusPending && e.Selected {
			selected = append(selected, idx)
		}
	}
	return selected
}

func (m *model) requestDelete() tea.Cmd {
	if m.scanning {
		m.lastEvent = "Scan still running"
		return nil
	}
	selected := m.selectedIndices()
	if len(selected) == 0 {
		m.lastEvent = "Nothing selected"
		return nil
	}

	var bytes int64
	sensitive := 0
	for _, idx := range selected {
		e := m.session.entries[idx]
		bytes += e.SizeBytes
		if e.Sensitive {
			sensitive++
		}
	}

	m.mode = modeConfirm
	m.confirm = newConfirmForm(len(selected), bytes, sensitive)
	if m.width > 0 {
		m.confirm = m.confirm.WithWidth(m.width - 4)
	}
	m.resize()
	return m.confirm.Init()
}

func newConfirmForm(count int, bytes int64, sensitive int) *huh.Form {
	description := "Removal is permanent; nothing goes to a trash bin."
	if sensitive > 0 {
		description = fmt.Sprintf("⚠ %d of the selected entries sit in sensitive locations.", sensitive)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Delete %d node_modules, freeing %s?", count, humanize.Bytes(uint64(bytes)))).
				Description(description).
				Affirmative("Delete").
				Negative("Keep"),
		),
	)
}

func (m *model) startDelete() tea.Cmd {
	if m.mode == modeDelete {
		return nil
	}
	var queue []string
	for _, idx := range m.selectedIndices() {
		queue = append(queue, m.session.entries[idx].RelPath)
	}
	if len(queue) == 0 {
		return nil
	}

	m.mode = modeDelete
	m.deleteQueue = queue
	m.deleteTotal = len(queue)
	m.deleteDone = 0
	m.deleteErrors = 0
	m.deleteCancelled = false
	m.passFreed = 0
	if e := m.findEntry(queue[0]); e != nil {
		e.Status = statusDeleting
	}
	m.setTableRows()
	m.resize()
	m.lastEvent = fmt.Sprintf("Deleting %d item(s)…", len(queue))
	slog.Info("delete pass started", "count", len(queue))

	return tea.Batch(m.deleteProgress.SetPercent(0), deleteCmd(m.scanOpts.RootHandle, queue[0]))
}

// applyDeleteResult records one outcome and decides what happens next:
// chain the next entry, stop early on cancellation (remaining entries stay
// pending), or end the pass.
func (m *model) applyDeleteResult(msg deleteResultMsg) tea.Cmd {
	if e := m.findEntry(msg.Path); e != nil {
		if msg.Err != nil {
			e.Status = statusFailed
			e.Failure = msg.Err.Error()
			m.deleteErrors++
			slog.Error("delete failed", "path", e.RelPath, "error", msg.Err)
		} else {
			e.Status = statusDeleted
			e.Selected = false
			e.Failure = ""
			m.passFreed += e.SizeBytes
			m.freedBytes += e.SizeBytes
			m.deletedCount++
			slog.Info("deleted", "path", e.RelPath, "bytes", e.SizeBytes)
		}
	}

	if m.mode != modeDelete {
		return nil
	}

	m.deleteDone++
	percent := 1.0
	if m.deleteTotal > 0 {
		percent = float64(m.deleteDone) / float64(m.deleteTotal)
	}
	progressCmd := m.deleteProgress.SetPercent(percent)

	if m.deleteDone >= m.deleteTotal || m.deleteCancelled {
		remaining := m.deleteTotal - m.deleteDone
		m.endDeletePass(remaining)
		return progressCmd
	}

	next := m.deleteQueue[m.deleteDone]
	if e := m.findEntry(next); e != nil {
		e.Status = statusDeleting
	}
	return tea.Batch(progressCmd, deleteCmd(m.scanOpts.RootHandle, next))
}

func (m *model) endDeletePass(remaining int) {
	m.mode = modeBrowse
	m.deleteQueue = nil
	freed := humanize.Bytes(uint64(m.passFreed))
	switch {
	case remaining > 0:
		m.lastEvent = fmt.Sprintf("Deletion stopped: freed %s, %d left pending", freed, remaining)
	case m.deleteErrors > 0:
		m.lastEvent = fmt.Sprintf("Freed %s, %d item(s) failed", freed, m.deleteErrors)
	default:
		m.lastEvent = fmt.Sprintf("Freed %s across %d item(s)", freed, m.deleteTotal)
	}
	m.resize()
	slog.Info("delete pass finished",
		"deleted", m.deleteTotal-m.deleteErrors-remaining,
		"failed", m.deleteErrors,
		"skipped", remaining,
		"freed_bytes", m.passFreed)
}

func (m model) findEntry(relPath string) *entry {
	for _, e := range m.session.entries {
		if e.RelPath == relPath {
			return e
		}
	}
	return nil
}

// stats sums the visible collection: bytes not yet deleted, and the count
// and size of the current selection.
func (m model) stats() (remainingBytes int64, selected int, selectedBytes int64) {
	for _, e := range m.session.entries {
		if e.Status == statusDeleted {
			continue
		}
		remainingBytes += e.SizeBytes
		if e.Status == statusPending && e.Selected {
			selected++
			selectedBytes += e.SizeBytes
		}
	}
	return remainingBytes, selected, selectedBytes
}

func scanStartCmd(ctx context.Context, opts ScanOptions, id int) tea.Cmd {
	return func() tea.Msg {
		ch := make(chan tea.Msg)
		go runScanStream(ctx, opts, id, ch)
		return scanStreamMsg{ID: id, Ch: ch}
	}
}

func waitScanMsg(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func deleteCmd(root *os.Root, relPath string) tea.Cmd {
	return func() tea.Msg {
		cleaned, err := validateDeletePath(relPath)
		if err != nil {
			return deleteResultMsg{Path: relPath, Err: err}
		}
		if root == nil {
			return deleteResultMsg{Path: cleaned, Err: errors.New("delete: root handle is nil")}
		}
		if _, statErr := root.Stat(cleaned); statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return deleteResultMsg{Path: cleaned, Err: errors.New("directory no longer exists")}
			}
			return deleteResultMsg{Path: cleaned, Err: statErr}
		}
		return deleteResultMsg{Path: cleaned, Err: root.RemoveAll(cleaned)}
	}
}

func scanPulseCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return scanPulseMsg{}
	})
}

func validateDeletePath(relPath string) (string, error) {
	if relPath == "" {
		return "", errors.New("delete: empty path")
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == "." || cleaned == string(os.PathSeparator) {
		return "", errors.New("delete: refusing to delete root")
	}
	if filepath.IsAbs(cleaned) {
		return "", errors.New("delete: absolute paths are not allowed")
	}
	return cleaned, nil
}

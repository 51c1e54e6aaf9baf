package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.DiscardHandler))
	os.Exit(m.Run())
}

func pendingEntry(rel string, size int64, sensitive bool) entry {
	return entry{
		Path:      "/scan/root/" + rel,
		RelPath:   rel,
		SizeBytes: size,
		Sensitive: sensitive,
		Selected:  !sensitive,
	}
}

// newTestModel builds a model outside a running program, seeded as if the
// given entries had already streamed in.
func newTestModel(t *testing.T, entries ...entry) model {
	t.Helper()
	m := NewModel(context.Background(), ScanOptions{Root: "/scan/root"})
	m.scanning = false
	for _, e := range entries {
		require.NotNil(t, m.session.record(e))
	}
	m.rebuildOrder()
	m.setTableRows()
	return m
}

func relsInOrder(m model) []string {
	rels := make([]string, 0, len(m.order))
	for _, idx := range m.order {
		rels = append(rels, m.session.entries[idx].RelPath)
	}
	return rels
}

func TestToggleCurrent(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))

	m.toggleCurrent()
	assert.False(t, m.session.entries[0].Selected)
	assert.Equal(t, "Unselected", m.lastEvent)

	m.toggleCurrent()
	assert.True(t, m.session.entries[0].Selected)
	assert.Equal(t, "Selected", m.lastEvent)
}

func TestToggleLockedWhileDeleting(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.session.entries[0].Status = statusDeleting
	m.setTableRows()

	m.toggleCurrent()

	assert.True(t, m.session.entries[0].Selected, "selection is frozen once deletion starts")
	assert.Equal(t, statusDeleting, m.session.entries[0].Status)
}

func TestToggleFailedRequeues(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.session.entries[0].Status = statusFailed
	m.session.entries[0].Selected = false
	m.session.entries[0].Failure = "permission denied"
	m.setTableRows()

	m.toggleCurrent()

	e := m.session.entries[0]
	assert.Equal(t, statusPending, e.Status)
	assert.True(t, e.Selected)
	assert.Equal(t, "Queued failed entry for retry", m.lastEvent)
}

func TestSelectAllSafeSmartToggle(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("a/node_modules", 100, false),
		pendingEntry("b/node_modules", 200, false),
		pendingEntry(".cache/x/node_modules", 300, true),
	)
	m.session.entries[1].Selected = false

	m.selectAllSafe()
	assert.True(t, m.session.entries[0].Selected)
	assert.True(t, m.session.entries[1].Selected)
	assert.False(t, m.session.entries[2].Selected, "sensitive entries never join the safe select-all")

	m.selectAllSafe()
	assert.False(t, m.session.entries[0].Selected, "second pass clears when everything was selected")
	assert.False(t, m.session.entries[1].Selected)
}

func TestSelectAllForceIncludesSensitive(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("a/node_modules", 100, false),
		pendingEntry(".cache/x/node_modules", 300, true),
	)

	m.selectAllForce()
	assert.True(t, m.session.entries[0].Selected)
	assert.True(t, m.session.entries[1].Selected)

	m.selectAllForce()
	assert.False(t, m.session.entries[0].Selected)
	assert.False(t, m.session.entries[1].Selected)
}

func TestSelectAllSkipsNonPending(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("a/node_modules", 100, false),
		pendingEntry("b/node_modules", 200, false),
	)
	m.session.entries[0].Selected = false
	m.session.entries[1].Selected = false
	m.session.entries[1].Status = statusFailed

	m.selectAllSafe()

	assert.True(t, m.session.entries[0].Selected)
	assert.False(t, m.session.entries[1].Selected, "failed entries need an explicit retry toggle")
}

func TestSortModes(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("c/node_modules", 50, false),
		pendingEntry("a/node_modules", 300, false),
		pendingEntry("b/node_modules", 10, false),
	)

	assert.Equal(t, []string{"c/node_modules", "a/node_modules", "b/node_modules"}, relsInOrder(m),
		"discovery order is the default")

	m.sortMode = sortBySizeDesc
	m.rebuildOrder()
	assert.Equal(t, []string{"a/node_modules", "c/node_modules", "b/node_modules"}, relsInOrder(m))

	m.sortMode = sortBySizeAsc
	m.rebuildOrder()
	assert.Equal(t, []string{"b/node_modules", "c/node_modules", "a/node_modules"}, relsInOrder(m))

	m.sortMode = sortByNameAsc
	m.rebuildOrder()
	assert.Equal(t, []string{"a/node_modules", "b/node_modules", "c/node_modules"}, relsInOrder(m))
}

func TestSortSurvivesSelection(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("c/node_modules", 50, false),
		pendingEntry("a/node_modules", 300, false),
	)

	m.toggleCurrent() // unselect c, the cursor row
	m.sortMode = sortBySizeDesc
	m.rebuildOrder()
	m.setTableRows()

	assert.False(t, m.findEntry("c/node_modules").Selected, "selection follows the entry, not the row")
	assert.True(t, m.findEntry("a/node_modules").Selected)
}

func TestNextSortModeCycles(t *testing.T) {
	mode := sortByDiscovery
	seen := []sortMode{}
	for range 4 {
		mode = nextSortMode(mode)
		seen = append(seen, mode)
	}
	assert.Equal(t, []sortMode{sortBySizeDesc, sortBySizeAsc, sortByNameAsc, sortByDiscovery}, seen)
}

func TestRebuildOrderDropsDeleted(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("a/node_modules", 100, false),
		pendingEntry("b/node_modules", 200, false),
	)
	m.session.entries[0].Status = statusDeleted
	m.rebuildOrder()

	assert.Equal(t, []string{"b/node_modules"}, relsInOrder(m))
	assert.Len(t, m.session.entries, 2, "the session keeps deleted entries")
}

func TestStats(t *testing.T) {
	m := newTestModel(t,
		pendingEntry("a/node_modules", 100, false),
		pendingEntry("b/node_modules", 200, false),
		pendingEntry("c/node_modules", 400, false),
	)
	m.session.entries[1].Selected = false
	m.session.entries[2].Status = statusDeleted
	m.session.entries[2].Selected = false

	remaining, selected, selectedBytes := m.stats()

	assert.Equal(t, int64(300), remaining, "deleted entries no longer count")
	assert.Equal(t, 1, selected)
	assert.Equal(t, int64(100), selectedBytes)
}

func TestRequestDeleteRequiresSelection(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.session.entries[0].Selected = false

	cmd := m.requestDelete()

	assert.Nil(t, cmd)
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "Nothing selected", m.lastEvent)
}

func TestRequestDeleteBlockedWhileScanning(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.scanning = true

	cmd := m.requestDelete()

	assert.Nil(t, cmd)
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "Scan still running", m.lastEvent)
}

func TestRequestDeleteOpensConfirm(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))

	cmd := m.requestDelete()

	require.NotNil(t, cmd)
	assert.Equal(t, modeConfirm, m.mode)
	require.NotNil(t, m.confirm)
}

func TestConfirmEscCancels(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	require.NotNil(t, m.requestDelete())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	next := updated.(model)

	assert.Equal(t, modeBrowse, next.mode)
	assert.Nil(t, next.confirm)
	assert.Equal(t, "Deletion cancelled", next.lastEvent)
	assert.True(t, next.session.entries[0].Selected, "cancelling keeps the selection")
	assert.Equal(t, statusPending, next.session.entries[0].Status)
}

func TestUpdateScanRowAppends(t *testing.T) {
	m := newTestModel(t)
	m.scanning = true

	updated, _ := m.Update(scanRowMsg{ID: m.scanID, Entry: pendingEntry("a/node_modules", 100, false)})
	next := updated.(model)

	require.Len(t, next.session.entries, 1)
	assert.Equal(t, []string{"a/node_modules"}, relsInOrder(next))
}

func TestUpdateScanRowIgnoresStaleStream(t *testing.T) {
	m := newTestModel(t)
	m.scanning = true

	updated, _ := m.Update(scanRowMsg{ID: m.scanID + 7, Entry: pendingEntry("a/node_modules", 100, false)})
	next := updated.(model)

	assert.Empty(t, next.session.entries)
}

func TestUpdateScanRowsKeepArrivalOrder(t *testing.T) {
	m := newTestModel(t)
	m.scanning = true

	updated, _ := m.Update(scanRowMsg{ID: m.scanID, Entry: pendingEntry("b/node_modules", 10, false)})
	updated, _ = updated.(model).Update(scanRowMsg{ID: m.scanID, Entry: pendingEntry("a/node_modules", 999, false)})
	next := updated.(model)

	assert.Equal(t, []string{"b/node_modules", "a/node_modules"}, relsInOrder(next),
		"new rows append; the list is not resorted on arrival")
}

func TestUpdateScanFinished(t *testing.T) {
	m := newTestModel(t)
	m.scanning = true

	updated, _ := m.Update(scanFinishedMsg{ID: m.scanID, Visited: 42, Elapsed: time.Second})
	next := updated.(model)

	assert.False(t, next.scanning)
	assert.True(t, next.session.complete)
	assert.Contains(t, next.lastEvent, "Scan complete")
}

func TestUpdateScanFinishedCancelled(t *testing.T) {
	m := newTestModel(t)
	m.scanning = true

	updated, _ := m.Update(scanFinishedMsg{ID: m.scanID, Visited: 7, Cancelled: true})
	next := updated.(model)

	assert.False(t, next.scanning)
	assert.Contains(t, next.lastEvent, "cancelled")
}

func TestEscStopsScan(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.scanning = true
	oldID := m.scanID

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	next := updated.(model)

	assert.False(t, next.scanning)
	assert.Greater(t, next.scanID, oldID, "straggler messages from the old stream become stale")
	assert.True(t, next.session.cancelled)
	assert.Len(t, next.session.entries, 1, "partial results stay on screen")
}

func TestSortKeyCycles(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	next := updated.(model)

	assert.Equal(t, sortBySizeDesc, next.sortMode)
	assert.Contains(t, next.lastEvent, "size")
}

func TestStartScanResetsState(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))
	m.freedBytes = 500
	m.err = assert.AnError

	next, cmds := m.startScan()

	assert.Equal(t, m.scanID+1, next.scanID)
	assert.True(t, next.scanning)
	assert.NoError(t, next.err)
	assert.Empty(t, next.session.entries)
	assert.Zero(t, next.freedBytes)
	assert.Len(t, cmds, 3)
}

func TestStatusCells(t *testing.T) {
	e := &entry{RelPath: "a/node_modules", Selected: true}
	assert.Contains(t, statusCell(e), "ready")
	assert.Contains(t, checkboxCell(e), "[x]")

	e.Selected = false
	assert.Contains(t, checkboxCell(e), "[ ]")

	e.Status = statusFailed
	e.Failure = "permission denied"
	assert.Contains(t, statusCell(e), "failed: permission denied")

	e.Status = statusPending
	assert.Contains(t, statusCell(e), "retry queued")

	e.Status = statusDeleting
	assert.Contains(t, statusCell(e), "deleting")

	sensitive := &entry{RelPath: ".cache/node_modules", Sensitive: true}
	assert.Contains(t, statusCell(sensitive), "sensitive")
	assert.Contains(t, pathCell(sensitive), "⚠")
}

func TestViewSmoke(t *testing.T) {
	m := newTestModel(t, pendingEntry("a/node_modules", 100, false))

	assert.Equal(t, "Loading…", m.View(), "nothing renders before the first resize")

	m.updateLayout(100, 30)
	out := m.View()
	assert.Contains(t, out, "nodekill")
	assert.Contains(t, out, "a/node_modules")
}

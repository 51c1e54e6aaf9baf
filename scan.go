package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// matchName is the one directory name this tool hunts for. Everything else
// about an entry (sensitivity, selection, status) derives from where a
// directory with this name was found.
const matchName = "node_modules"

const defaultSizeWorkers = 4

type ScanOptions struct {
	Root       string
	RootHandle *os.Root
	Home       string
	MaxDepth   int
	Workers    int
	SkipDirs   map[string]struct{}
}

func defaultSkipDirs() map[string]struct{} {
	return map[string]struct{}{
		".git": {},
		".hg":  {},
		".svn": {},
	}
}

type entryStatus int

const (
	statusPending entryStatus = iota
	statusDeleting
	statusDeleted
	statusFailed
)

// entry is one discovered node_modules directory. Sensitive and the initial
// Selected value are assigned together when the directory is discovered and
// Sensitive never changes afterwards. SizeBytes is final once computed;
// if the tree changes under us the recorded size goes stale and that is
// tolerated.
type entry struct {
	Path      string // absolute, for display and classification
	RelPath   string // relative to the scan root, for os.Root operations
	SizeBytes int64
	ModTime   time.Time
	Sensitive bool
	Selected  bool
	Status    entryStatus
	Failure   string // last deletion error, set while Status == statusFailed
}

// scanSession accumulates one traversal run. Entries are append-only in
// discovery order and are never removed or reordered here; the visible list
// is a separate index view owned by the model.
type scanSession struct {
	entries    []*entry
	seen       map[string]struct{}
	totalBytes int64
	warnings   []string
	complete   bool
	cancelled  bool
}

func newScanSession() *scanSession {
	return &scanSession{seen: map[string]struct{}{}}
}

// record appends a discovered entry, ignoring duplicate paths.
func (s *scanSession) record(e entry) *entry {
	if _, dup := s.seen[e.Path]; dup {
		return nil
	}
	s.seen[e.Path] = struct{}{}
	stored := e
	s.entries = append(s.entries, &stored)
	s.totalBytes += e.SizeBytes
	return &stored
}

func (s *scanSession) finish(warnings []string, cancelled bool) {
	s.warnings = warnings
	s.complete = true
	s.cancelled = cancelled
}

// runScanStream walks the root looking for node_modules directories and
// streams results to out as they become ready. Classification happens at
// discovery, in the walker; size computation is handed to a bounded worker
// pool so several subtree measurements overlap while the walk continues.
// The walker never descends into a match, so a nested node_modules is part
// of its parent's size and never a separate entry.
func runScanStream(ctx context.Context, opts ScanOptions, id int, out chan<- tea.Msg) {
	defer close(out)

	if opts.RootHandle == nil {
		select {
		case out <- scanFinishedMsg{ID: id, Err: errors.New("scan: root handle is nil")}:
		case <-ctx.Done():
		}
		return
	}

	start := time.Now()
	warnings := []string{}
	visited := 0
	found := 0
	lastProgress := time.Now()

	// Every send races against cancellation. Once the model abandons this
	// stream nobody receives anymore, and a bare send would pin the walker
	// and its workers forever.
	send := func(msg tea.Msg) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	sendProgress := func(force bool) {
		if force || time.Since(lastProgress) > 200*time.Millisecond {
			send(scanProgressMsg{ID: id, Visited: visited, Found: found})
			lastProgress = time.Now()
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultSizeWorkers
	}
	sizers, sizerCtx := errgroup.WithContext(ctx)
	sizers.SetLimit(workers)

	maxDepth := opts.MaxDepth
	rootFS := opts.RootHandle.FS()

	err := fs.WalkDir(rootFS, ".", func(path string, de fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				warnings = append(warnings, fmt.Sprintf("permission denied: %s", filepath.FromSlash(path)))
				return fs.SkipDir
			}
			if errors.Is(err, fs.ErrNotExist) {
				warnings = append(warnings, fmt.Sprintf("vanished during scan: %s", filepath.FromSlash(path)))
				return fs.SkipDir
			}
			return err
		}

		if !de.IsDir() {
			return nil
		}
		visited++
		sendProgress(false)

		name := de.Name()
		if path != "." {
			if _, ok := opts.SkipDirs[name]; ok {
				return fs.SkipDir
			}
			if maxDepth > 0 && relativeDepth(path) > maxDepth {
				return fs.SkipDir
			}
		}
		if name != matchName || path == "." {
			return nil
		}

		// Classify here, together with discovery, so the sensitivity flag
		// and the pre-check default are assigned exactly once per entry.
		rel := filepath.FromSlash(path)
		abs := filepath.Join(opts.Root, rel)
		sensitive := sensitivePath(abs, opts.Home)

		var modTime time.Time
		if info, infoErr := de.Info(); infoErr == nil {
			modTime = info.ModTime()
		}

		found++
		sizers.Go(func() error {
			size := dirSize(sizerCtx, rootFS, path)
			if sizerCtx.Err() != nil {
				return sizerCtx.Err()
			}
			row := scanRowMsg{ID: id, Entry: entry{
				Path:      abs,
				RelPath:   rel,
				SizeBytes: size,
				ModTime:   modTime,
				Sensitive: sensitive,
				Selected:  !sensitive,
			}}
			select {
			case out <- row:
				return nil
			case <-sizerCtx.Done():
				return sizerCtx.Err()
			}
		})
		sendProgress(true)
		return fs.SkipDir
	})

	if waitErr := sizers.Wait(); waitErr != nil && err == nil {
		err = waitErr
	}

	cancelled := errors.Is(err, context.Canceled)
	if cancelled {
		err = nil
	}

	sendProgress(true)
	send(scanFinishedMsg{
		ID:        id,
		Warnings:  warnings,
		Err:       err,
		Elapsed:   time.Since(start),
		Visited:   visited,
		Found:     found,
		Cancelled: cancelled,
	})
}

// dirSize sums regular file sizes beneath relPath without following
// symlinks. Unreadable or vanished subtrees are skipped, so the result is a
// best-effort lower bound; only context cancellation stops it early.
func dirSize(ctx context.Context, fsys fs.FS, relPath string) int64 {
	var size int64
	_ = fs.WalkDir(fsys, filepath.ToSlash(relPath), func(path string, de fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if de != nil && de.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if de.IsDir() || !de.Type().IsRegular() {
			return nil
		}
		info, infoErr := de.Info()
		if infoErr != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size
}

func relativeDepth(relPath string) int {
	trimmed := strings.TrimPrefix(relPath, "./")
	if trimmed == "." || trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/")
}

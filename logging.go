package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
)

const maxLogFiles = 20

// initLogging wires the process-wide slog logger. Logging is opt-in: the
// TUI owns the terminal, so without NODEKILL_DEBUG=1 or NODEKILL_DEBUG_FILE
// everything is discarded rather than written anywhere the UI could trip
// over.
func initLogging() error {
	debugFile := os.Getenv("NODEKILL_DEBUG_FILE")
	if os.Getenv("NODEKILL_DEBUG") != "1" && debugFile == "" {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil
	}

	logPath := debugFile
	if logPath == "" {
		dir, err := getLogDir()
		if err != nil {
			return fmt.Errorf("resolve log directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		if err := rotateLogs(dir, maxLogFiles); err != nil {
			// Rotation failure should not prevent logging.
			fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
		}
		logPath = filepath.Join(dir, uuid.New().String()+".log")
	} else if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	slog.Info("debug logging enabled", "log_file", logPath)
	return nil
}

// rotateLogs removes the oldest log files so the directory stays under
// maxFiles after the new log is created.
func rotateLogs(dir string, maxFiles int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}

	type logFileInfo struct {
		path    string
		modTime time.Time
	}
	var logFiles []logFileInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logFiles = append(logFiles, logFileInfo{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(logFiles) < maxFiles {
		return nil
	}

	sort.Slice(logFiles, func(i, j int) bool {
		return logFiles[i].modTime.Before(logFiles[j].modTime)
	})

	numToDelete := len(logFiles) - maxFiles + 1
	for i := 0; i < numToDelete && i < len(logFiles); i++ {
		if err := os.Remove(logFiles[i].path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to delete old log file %s: %v\n", logFiles[i].path, err)
		}
	}
	return nil
}

// getLogDir returns the OS-specific log directory.
func getLogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "nodekill"), nil
	case "linux":
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			stateHome = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(stateHome, "nodekill"), nil
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(localAppData, "nodekill", "logs"), nil
	default:
		return filepath.Join(home, ".nodekill", "logs"), nil
	}
}

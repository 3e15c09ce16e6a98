// Package logger provides leveled logging with optional per-level file
// output under the data directory, rotated daily.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"casgate/internal/constants"
)

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes leveled log lines to stdout and, when a data directory is
// set, to per-level daily files beneath it.
type Logger struct {
	mu            sync.Mutex
	level         string
	dataDir       string // empty = stdout only
	fileHandles   map[string]*os.File
	currentDay    int // year*1000 + yday, for rotation
	writeToStdout bool
}

// New creates a stdout-only logger at the given level. Unknown levels
// fall back to debug.
func New(level string) *Logger {
	if _, ok := levelOrder[level]; !ok {
		level = LevelDebug
	}
	return &Logger{
		level:         level,
		writeToStdout: true,
		fileHandles:   make(map[string]*os.File),
	}
}

// SetDataDir enables or changes file logging under the given directory.
// Pass empty string to disable file logging.
func (l *Logger) SetDataDir(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeHandlesLocked()
	l.dataDir = dir
	l.currentDay = 0
	if dir != "" {
		l.currentDay = dayKey(time.Now())
	}
}

// SetLevel changes the minimum level. Unknown levels are ignored.
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := levelOrder[level]; ok {
		l.level = level
	}
}

// Close closes all open file handles.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeHandlesLocked()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

func (l *Logger) log(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelOrder[level] < levelOrder[l.level] {
		return
	}

	timestamp := time.Now().Format(constants.LogTimestampFormat)
	line := fmt.Sprintf("[%s] %s | %s\n", level, timestamp, fmt.Sprintf(format, args...))

	if l.writeToStdout {
		fmt.Print(line)
	}
	if l.dataDir != "" {
		l.rotateLocked()
		l.writeFileLocked(level, line)
	}
}

// dayKey returns a unique key for the current day.
func dayKey(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}

func levelToDir(level string) string {
	switch level {
	case LevelInfo:
		return constants.LogsDirInfo
	case LevelWarn:
		return constants.LogsDirWarn
	case LevelError:
		return constants.LogsDirError
	default:
		return constants.LogsDirDebug
	}
}

func (l *Logger) rotateLocked() {
	key := dayKey(time.Now())
	if key != l.currentDay {
		l.closeHandlesLocked()
		l.currentDay = key
	}
}

func (l *Logger) closeHandlesLocked() error {
	var lastErr error
	for level, handle := range l.fileHandles {
		if err := handle.Close(); err != nil {
			lastErr = err
		}
		delete(l.fileHandles, level)
	}
	return lastErr
}

// handleLocked returns the open file for a level, creating
// dataDir/.internal/logs/<level>/<day>.log on first use.
func (l *Logger) handleLocked(level string) (*os.File, error) {
	if handle, ok := l.fileHandles[level]; ok {
		return handle, nil
	}

	dir := filepath.Join(l.dataDir, constants.InternalDir, constants.LogsDir, levelToDir(level))
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	year, month, day := time.Now().UTC().Date()
	startOfDay := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, fmt.Sprintf("%d%s", startOfDay.Unix(), constants.LogFileExtension))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.fileHandles[level] = file
	return file, nil
}

func (l *Logger) writeFileLocked(level, line string) {
	handle, err := l.handleLocked(level)
	if err != nil {
		if l.writeToStdout {
			fmt.Printf("[LOGGER_ERROR] %v\n", err)
		}
		return
	}
	if _, err := handle.WriteString(line); err != nil && l.writeToStdout {
		fmt.Printf("[LOGGER_ERROR] failed to write log file: %v\n", err)
	}
}

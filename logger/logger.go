package logger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// MaxLines caps the log file size; the file is trimmed to its newest
// MaxLines lines whenever it grows past the cap.
const MaxLines = 5000

// Logger is a level-filtered file logger that keeps the log file bounded.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	lines int
	level Level
}

var global *Logger

// fallback is used before Init so early failures still surface somewhere.
var fallback = &Logger{file: os.Stderr, level: LevelInfo}

// New creates a Logger over an open file and installs it as the process
// logger for the package-level helpers.
func New(file *os.File, level Level) *Logger {
	l := &Logger{file: file, level: level}
	l.countLines()
	global = l
	return l
}

// SetLevel changes the minimum level that gets written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level Level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	fmt.Fprintf(l.file, "%s [%s] %s\n",
		time.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	l.lines++
	if l.lines > MaxLines {
		l.trim()
	}
}

func (l *Logger) Debug(format string, v ...any) { l.log(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.log(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.log(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.log(LevelError, format, v...) }

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// countLines seeds the line counter from the existing file contents.
func (l *Logger) countLines() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.file.Seek(0, 0)
	scanner := bufio.NewScanner(l.file)
	for scanner.Scan() {
		l.lines++
	}
	l.file.Seek(0, 2)
}

// trim rewrites the file keeping only the newest MaxLines lines.
// Caller holds the mutex.
func (l *Logger) trim() {
	l.file.Seek(0, 0)
	scanner := bufio.NewScanner(l.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > MaxLines {
		lines = lines[len(lines)-MaxLines:]
	}

	l.file.Truncate(0)
	l.file.Seek(0, 0)
	for _, line := range lines {
		fmt.Fprintln(l.file, line)
	}
	l.lines = len(lines)
}

func active() *Logger {
	if global != nil {
		return global
	}
	return fallback
}

// Package-level helpers writing through the process logger.

func Debug(format string, v ...any) { active().Debug(format, v...) }
func Info(format string, v ...any)  { active().Info(format, v...) }
func Warn(format string, v ...any)  { active().Warn(format, v...) }
func Error(format string, v ...any) { active().Error(format, v...) }

// Fatal logs at error level and exits.
func Fatal(format string, v ...any) {
	active().Error(format, v...)
	os.Exit(1)
}

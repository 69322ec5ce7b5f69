package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fatih/color"
)

// Logger is a small console logger with a per-component name.
type Logger struct {
	component string
}

var (
	INFO_EMOJI    = "ℹ️ "
	SUCCESS_EMOJI = "✅ "
	WARN_EMOJI    = "⚠️ "
	ERROR_EMOJI   = "❌ "
	DEBUG_EMOJI   = "🔍 "
)

func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) format(level, emoji, msg string) string {
	_, file, line, _ := runtime.Caller(2)
	ts := time.Now().Format("2006-01-02 15:04:05")

	return fmt.Sprintf("%s | %s | %s | %s:%d | %s | %s",
		emoji,
		ts,
		level,
		filepath.Base(file),
		line,
		l.component,
		msg,
	)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	color.Cyan(l.format("INFO", INFO_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Success(msg string, args ...interface{}) {
	color.Green(l.format("SUCCESS", SUCCESS_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	color.Yellow(l.format("WARN", WARN_EMOJI, fmt.Sprintf(msg, args...)))
}

// Error logs the message and returns it wrapped around err so callers can
// log and propagate in one statement.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	args = append(args, err)
	color.Red(l.format("ERROR", ERROR_EMOJI, fmt.Sprintf(msg, args...)))
	return fmt.Errorf("%s: %w", msg, err)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	color.Magenta(l.format("DEBUG", DEBUG_EMOJI, fmt.Sprintf(msg, args...)))
}

package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel is the minimum severity that is written.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", int32(l))
}

// ParseLevel maps a case-insensitive level name to a LogLevel. "warning"
// is accepted for LevelWarn. Unknown names return LevelInfo and false.
func ParseLevel(s string) (LogLevel, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return LevelWarn, true
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

var (
	level     atomic.Int32
	levelOnce sync.Once
)

// levelFromEnv honours DEBUG before LOG_LEVEL.
func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	if l, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		return l
	}
	return LevelInfo
}

// SetLevel overrides the environment. It wins even when called before the
// first message is logged.
func SetLevel(l LogLevel) {
	levelOnce.Do(func() {})
	level.Store(int32(l))
}

// GetLevel returns the active level, reading the environment on first use.
func GetLevel() LogLevel {
	levelOnce.Do(func() { level.Store(int32(levelFromEnv())) })
	return LogLevel(level.Load())
}

// IsDebugEnabled reports whether Debug output is written.
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(l LogLevel, tag, format string, args []interface{}) {
	if GetLevel() <= l {
		log.Printf("["+tag+"] "+format, args...)
	}
}

func Debug(format string, args ...interface{}) { emit(LevelDebug, "DEBUG", format, args) }

func Info(format string, args ...interface{}) { emit(LevelInfo, "INFO", format, args) }

func Warn(format string, args ...interface{}) { emit(LevelWarn, "WARN", format, args) }

func Error(format string, args ...interface{}) { emit(LevelError, "ERROR", format, args) }

// Fatal logs regardless of level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Package logging is a levelled wrapper around the standard logger.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int32(l))
}

// current is read by every worker goroutine.
var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error).
func InitFromEnv() {
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel parses name and applies it; unknown names mean info.
func SetLevel(name string) {
	l, _ := ParseLevel(name)
	current.Store(int32(l))
}

// Current returns the active level.
func Current() Level {
	return Level(current.Load())
}

func logf(l Level, format string, args ...interface{}) {
	if l < Current() {
		return
	}
	log.Printf(l.String()+" "+format, args...)
}

func Debugf(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

func Infof(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

func Warnf(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

// Errorf always logs.
func Errorf(format string, args ...interface{}) {
	log.Printf(LevelError.String()+" "+format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf("FATAL "+format, args...)
}

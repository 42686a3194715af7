// SPDX-License-Identifier: MIT
// Package log is the process-wide leveled logger. Messages go through a
// zerolog console writer on stderr; the level can be changed at any time
// from any goroutine.
package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogLevel is a zerolog level restricted to the five the config accepts.
type LogLevel = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
	LevelFatal = zerolog.FatalLevel
)

const timeFormat = "15:04:05.000"

var (
	level  atomic.Int32
	logger atomic.Pointer[zerolog.Logger]
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// ParseLevel maps a config string (case-insensitive, "warning" accepted)
// to a level. Unknown strings return LevelInfo and false.
func ParseLevel(s string) (LogLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil || l < LevelDebug || l > LevelFatal || s == "" {
		return LevelInfo, false
	}
	return l, true
}

// SetOutput sends colored console lines to w.
func SetOutput(w io.Writer) {
	setWriter(zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat})
}

// SetOutputPlain sends uncolored console lines to w, for files and tests.
func SetOutputPlain(w io.Writer) {
	setWriter(zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat, NoColor: true})
}

func setWriter(w io.Writer) {
	l := zerolog.New(w).With().Timestamp().Logger()
	logger.Store(&l)
}

func SetLevel(l LogLevel) {
	level.Store(int32(l))
}

func GetLevel() LogLevel {
	return LogLevel(level.Load())
}

// event returns nil below the current level; zerolog treats a nil event
// as disabled.
func event(l LogLevel) *zerolog.Event {
	if l < GetLevel() {
		return nil
	}
	return logger.Load().WithLevel(l)
}

func Debugf(format string, v ...any) { event(LevelDebug).Msgf(format, v...) }
func Infof(format string, v ...any)  { event(LevelInfo).Msgf(format, v...) }
func Warnf(format string, v ...any)  { event(LevelWarn).Msgf(format, v...) }
func Errorf(format string, v ...any) { event(LevelError).Msgf(format, v...) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	logger.Load().Fatal().Msgf(format, v...)
}

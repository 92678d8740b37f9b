// Package logger wraps github.com/op/go-logging behind the small
// per-package constructor used throughout this module:
//
//	var log = logger.NewLogger("[state]")
//
// It offers printf-style *f methods and key/value methods; the packages in
// this module log only through the key/value methods (Info, Warning, Error,
// Critical).
package logger

import (
	"fmt"
	"os"
	"strings"

	logging "github.com/op/go-logging"
)

var backendInitialized bool

func ensureBackend() {
	if backendInitialized {
		return
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.NewBackendFormatter(backend, logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05.000} %{level:.5s} %{message}`,
	))
	leveled := logging.AddModuleLevel(formatter)
	leveled.SetLevel(logging.INFO, "")
	logging.SetBackend(leveled)
	backendInitialized = true
}

// Logger is a tagged, leveled logger. Every call site prefixes its messages
// with the tag passed to NewLogger, e.g. "[state]", "[executive]".
type Logger struct {
	tag string
	l   *logging.Logger
}

// NewLogger returns a Logger that prefixes every message with tag.
func NewLogger(tag string) *Logger {
	ensureBackend()
	return &Logger{tag: tag, l: logging.MustGetLogger(strings.TrimSpace(tag))}
}

func (lg *Logger) kv(msg string, kv []interface{}) string {
	var b strings.Builder
	b.WriteString(lg.tag)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

func (lg *Logger) Debugf(format string, args ...interface{}) {
	lg.l.Debugf(lg.tag+" "+format, args...)
}

func (lg *Logger) Infof(format string, args ...interface{}) {
	lg.l.Infof(lg.tag+" "+format, args...)
}

func (lg *Logger) Warningf(format string, args ...interface{}) {
	lg.l.Warningf(lg.tag+" "+format, args...)
}

func (lg *Logger) Errorf(format string, args ...interface{}) {
	lg.l.Errorf(lg.tag+" "+format, args...)
}

// Info logs a structured, key/value event at info level.
func (lg *Logger) Info(msg string, kv ...interface{}) { lg.l.Info(lg.kv(msg, kv)) }

// Warning logs a structured, key/value event at warning level.
func (lg *Logger) Warning(msg string, kv ...interface{}) { lg.l.Warning(lg.kv(msg, kv)) }

// Error logs a structured, key/value event at error level.
func (lg *Logger) Error(msg string, kv ...interface{}) { lg.l.Error(lg.kv(msg, kv)) }

// Critical logs an unrecoverable condition. Callers in this module reserve
// Critical for host/database failures with no recovery path.
func (lg *Logger) Critical(msg string, kv ...interface{}) { lg.l.Critical(lg.kv(msg, kv)) }

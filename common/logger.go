// Package common provides configuration and logging for the client library
package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

// packageLoggers names every logger this library writes through.
// Initialization and level changes iterate this list.
var packageLoggers = []string{"async", "cluster", "client"}

// --------------------------------------------------------------------------
// Log Sink
// --------------------------------------------------------------------------

// logSink serializes the writes of all package loggers onto one
// destination, so interleaved goroutines never tear a line.
type logSink struct {
	mu  sync.Mutex
	out io.Writer
}

var defaultSink = &logSink{out: os.Stdout}

func (s *logSink) write(level, pkg, message string) {
	line := fmt.Sprintf("%s %-5s %-8s %s\n",
		time.Now().Format("2006/01/02 15:04:05"), level, pkg, message)
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.out, line)
}

// SetLogOutput redirects all package loggers to w. Intended for tests and
// for embedding applications that capture client logs.
func SetLogOutput(w io.Writer) {
	defaultSink.mu.Lock()
	defaultSink.out = w
	defaultSink.mu.Unlock()
}

// --------------------------------------------------------------------------
// ILogger Adapter
// --------------------------------------------------------------------------

var levelNames = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// nimbusLogger adapts the shared sink to dragonboat's logger.ILogger
// contract, one instance per package name.
type nimbusLogger struct {
	pkg   string
	level logger.LogLevel
	sink  *logSink
}

func (l *nimbusLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *nimbusLogger) emit(level logger.LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	l.sink.write(levelNames[level], l.pkg, fmt.Sprintf(format, args...))
}

func (l *nimbusLogger) Debugf(format string, args ...interface{}) {
	l.emit(logger.DEBUG, format, args...)
}

func (l *nimbusLogger) Infof(format string, args ...interface{}) {
	l.emit(logger.INFO, format, args...)
}

func (l *nimbusLogger) Warningf(format string, args ...interface{}) {
	l.emit(logger.WARNING, format, args...)
}

func (l *nimbusLogger) Errorf(format string, args ...interface{}) {
	l.emit(logger.ERROR, format, args...)
}

func (l *nimbusLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.sink.write(levelNames[logger.CRITICAL], l.pkg, message)
	panic(message)
}

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	return &nimbusLogger{pkg: pkgName, level: logger.INFO, sink: defaultSink}
}

// --------------------------------------------------------------------------
// Level Parsing and Initialization
// --------------------------------------------------------------------------

var levelsByName = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warning": logger.WARNING,
	"warn":    logger.WARNING,
	"error":   logger.ERROR,
}

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) logger.LogLevel {
	if lvl, ok := levelsByName[strings.ToLower(level)]; ok {
		return lvl
	}
	panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
}

// InitLoggers installs the custom logger factory and applies the configured
// level to all loggers of this library.
func InitLoggers(config ClientConfig) {
	logger.SetLoggerFactory(CreateLogger)

	level := parseLogLevel(config.LogLevel)
	for _, pkg := range packageLoggers {
		logger.GetLogger(pkg).SetLevel(level)
	}
}

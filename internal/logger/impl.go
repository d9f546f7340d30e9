package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/go-utils/helpers"
	goulog "github.com/julianstephens/go-utils/logger"
)

type level uint8

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) level {
	switch s {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l level) String() string {
	switch l {
	case levelDebug:
		return "DEBUG"
	case levelInfo:
		return "INFO"
	case levelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ConsoleLogger writes timestamped key=value lines to stdout, errors to stderr.
type ConsoleLogger struct {
	minLevel level
	out      io.Writer
	err      io.Writer
}

// NewConsoleLogger creates a console logger. level is one of "debug", "info",
// "warn", "error"; anything else falls back to "info".
func NewConsoleLogger(lvl string) Logger {
	return &ConsoleLogger{
		minLevel: parseLevel(lvl),
		out:      os.Stdout,
		err:      os.Stderr,
	}
}

func (cl *ConsoleLogger) Debug(msg string, fields ...interface{}) {
	cl.emit(levelDebug, msg, fields...)
}

func (cl *ConsoleLogger) Info(msg string, fields ...interface{}) {
	cl.emit(levelInfo, msg, fields...)
}

func (cl *ConsoleLogger) Warn(msg string, fields ...interface{}) {
	cl.emit(levelWarn, msg, fields...)
}

func (cl *ConsoleLogger) Error(msg string, err error, fields ...interface{}) {
	// Errors always surface regardless of the configured level.
	allFields := append([]interface{}{"error", err}, fields...)
	cl.emit(levelError, msg, allFields...)
}

func (cl *ConsoleLogger) emit(lvl level, msg string, fields ...interface{}) {
	if lvl < cl.minLevel && lvl != levelError {
		return
	}

	fieldStr := ""
	for i := 0; i+1 < len(fields); i += 2 {
		fieldStr += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}

	line := fmt.Sprintf("[%s] %s: %s%s\n",
		time.Now().Format("2006-01-02T15:04:05.000Z07:00"), lvl, msg, fieldStr)

	w := cl.out
	if lvl == levelError {
		w = cl.err
	}
	fmt.Fprint(w, line) //nolint:errcheck
}

// FileLogger writes to a rotating log file through go-utils/logger.
type FileLogger struct {
	underlying *goulog.Logger
	filePath   string
}

// NewFileLogger creates a rotating file logger under logDir. maxFileSizeMB is
// the size per file before rotation; maxBackups is the number of rotated
// files retained. Old files are compressed.
func NewFileLogger(logDir string, logFileName string, maxFileSizeMB int, maxBackups int) (Logger, error) {
	if err := helpers.Ensure(logDir, true); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logDir)
	}

	logPath := filepath.Join(logDir, logFileName)

	underlying := goulog.New()
	maxAge := 28
	if err := underlying.SetFileOutputWithConfig(goulog.FileRotationConfig{
		Filename:   logPath,
		MaxSize:    maxFileSizeMB,
		MaxBackups: &maxBackups,
		MaxAge:     &maxAge,
		Compress:   true,
	}); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logDir)
	}

	return &FileLogger{
		underlying: underlying,
		filePath:   logPath,
	}, nil
}

func (fl *FileLogger) Debug(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		fl.underlying.WithFields(fieldsToMap(fields)).Debug(msg)
	} else {
		fl.underlying.Debug(msg)
	}
}

func (fl *FileLogger) Info(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		fl.underlying.WithFields(fieldsToMap(fields)).Info(msg)
	} else {
		fl.underlying.Info(msg)
	}
}

func (fl *FileLogger) Warn(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		fl.underlying.WithFields(fieldsToMap(fields)).Warn(msg)
	} else {
		fl.underlying.Warn(msg)
	}
}

func (fl *FileLogger) Error(msg string, err error, fields ...interface{}) {
	allFields := append([]interface{}{"error", err}, fields...)
	fl.underlying.WithFields(fieldsToMap(allFields)).Error(msg)
}

// Close flushes pending entries. go-utils/logger has no Close of its own; the
// method exists so callers can treat all loggers uniformly.
func (fl *FileLogger) Close() error {
	return nil
}

// fieldsToMap converts alternating key/value arguments to a field map.
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		result[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}
	return result
}

// MultiLogger forwards every call to all underlying loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines multiple loggers into one.
func NewMultiLogger(loggers ...Logger) Logger {
	return &MultiLogger{loggers: loggers}
}

func (ml *MultiLogger) Debug(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Debug(msg, fields...)
	}
}

func (ml *MultiLogger) Info(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Info(msg, fields...)
	}
}

func (ml *MultiLogger) Warn(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Warn(msg, fields...)
	}
}

func (ml *MultiLogger) Error(msg string, err error, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Error(msg, err, fields...)
	}
}

func (ml *MultiLogger) Close() error {
	var lastErr error
	for _, lg := range ml.loggers {
		if c, ok := lg.(Closeable); ok {
			if err := c.Close(); err != nil {
				lastErr = err
			}
		}
	}
	if lastErr != nil {
		return wrapLoggerErr("close multi logger", ErrLogClose, lastErr, "")
	}
	return nil
}

package cli

import (
	"os"
	"path"

	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal"
	"github.com/syncwal/syncwal/internal/syncwal/config"
)

// LogOpts are the logging flags shared by the three tools.
type LogOpts struct {
	Level  string `help:"Logging level (debug, info, warn, error)" default:"info" envvar:"SYNCWAL_LOG_LEVEL"`
	Debug  bool   `help:"Enable debug logging (overrides --level)"                envvar:"SYNCWAL_DEBUG"`
	Stream bool   `help:"Log to stdout/stderr only, skipping the log file"        envvar:"SYNCWAL_LOG_STREAM"`
}

// NewLogger builds the tool logger from flags and config: console only
// with --stream, otherwise console plus a rotating file under the
// user's app directory.
func NewLogger(opts LogOpts, cfg *config.Config) (logger.Logger, error) {
	level := opts.Level
	if opts.Debug {
		level = "debug"
	}

	consoleLogger := logger.NewConsoleLogger(level)
	if opts.Stream {
		return consoleLogger, nil
	}

	logDir := cfg.Log.Dir
	if logDir == syncwal.DefaultLogDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir = path.Join(homeDir, syncwal.DefaultAppDir, syncwal.DefaultLogDir)
	}

	fileLogger, err := logger.NewFileLogger(
		logDir,
		syncwal.DefaultLogFileName,
		cfg.Log.MaxSize,
		cfg.Log.MaxBackups,
	)
	if err != nil {
		return nil, err
	}

	return logger.NewMultiLogger(fileLogger, consoleLogger), nil
}

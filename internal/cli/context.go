package cli

import (
	"errors"

	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal/config"
)

// ErrValidationFailed is returned when an integrity check finds
// corruption; the tools translate it to exit code 1.
var ErrValidationFailed = errors.New("validation failed")

// Context carries the resolved configuration and logger into commands.
type Context struct {
	Logger logger.Logger
	Config *config.Config
}

// dataDir resolves the per-command flag against the config file value.
func (c *Context) dataDir(flag string) string {
	if flag != "" {
		return flag
	}
	return c.Config.DataDir
}

package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"github.com/syncwal/syncwal/internal/cli"
	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal/config"
)

var (
	version = "syncwal-inspect v0.1.0"
)

type CLI struct {
	cli.InspectCmd

	Config  string           `help:"Path to YAML config file" default:".syncwal.yaml" envvar:"SYNCWAL_CONFIG"`
	LogOpts cli.LogOpts      `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `help:"Show version information" short:"V"`
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("syncwal-inspect"),
		kong.Description("Inspect the contents and health of a syncwal WAL directory"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	cfg, err := config.Load(cliApp.Config)
	ctx.FatalIfErrorf(err)

	lg, err := cli.NewLogger(cliApp.LogOpts, cfg)
	ctx.FatalIfErrorf(err)
	defer func() {
		if c, ok := lg.(logger.Closeable); ok {
			_ = c.Close()
		}
	}()

	appCtx := &cli.Context{Logger: lg, Config: cfg}
	if err := cliApp.InspectCmd.Run(appCtx); err != nil {
		if errors.Is(err, cli.ErrValidationFailed) {
			os.Exit(1)
		}
		ctx.FatalIfErrorf(err)
	}
}

package main

import (
	"github.com/alecthomas/kong"

	"github.com/syncwal/syncwal/internal/cli"
	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal/config"
)

var (
	version = "syncwal-compact v0.1.0"
)

type CLI struct {
	cli.CompactCmd

	Config  string           `help:"Path to YAML config file" default:".syncwal.yaml" envvar:"SYNCWAL_CONFIG"`
	LogOpts cli.LogOpts      `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `help:"Show version information" short:"V"`
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("syncwal-compact"),
		kong.Description("Remove fully-covered segments from a syncwal WAL directory"),
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
	ctx.FatalIfErrorf(cliApp.CompactCmd.Run(appCtx))
}

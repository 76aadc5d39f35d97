package main

import (
	"strings"

	"github.com/alecthomas/kong"

	"github.com/lox/fairtable/internal/shuffle"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" help:"Run the table server"`
	Verify   VerifyCmd        `cmd:"" help:"Audit a PHH session file against its deck commitments"`
	Simulate SimulateCmd      `cmd:"" help:"Play random hands through a table and report the results"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fairtable"),
		kong.Description("Provably fair no-limit hold'em tables"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
			"schemes": strings.Join(shuffle.Schemes(), ", "),
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

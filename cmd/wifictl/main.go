package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/wifictl/internal/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("wifictl"),
		kong.Description("Wi-Fi console for an ESP32 evaluation board."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c)
	var exit *cli.ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}
	ctx.FatalIfErrorf(err)
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "rainalert",
		Usage: "watch a weather-radar map for rain near one location",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file (default: $CONFIG_FILE or ./rainalert.yaml)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "perform one radar check and exit",
				Action: RunAction,
			},
			{
				Name:   "watch",
				Usage:  "repeat radar checks on an interval and serve health and metrics",
				Action: WatchAction,
			},
		},
		Action: RunAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR]", err)
		os.Exit(1)
	}
}

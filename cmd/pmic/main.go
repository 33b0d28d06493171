package main

import (
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pmic/config"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	err := newApp(os.Stderr).Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}

func newApp(logOut io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "pmic"
	app.EnableBashCompletion = true
	app.Version = config.Version
	app.Usage = "power management chip register tool"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and raw adapter dumps",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "board file",
			EnvVars: []string{"PMIC_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "periph, mcp2221, bitbang, nanopi or sim",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "i2c-dev bus name for the periph adapter",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "7-bit device address",
		},
		&cli.IntFlag{
			Name:  "sda",
			Usage: "SDA pin or GPIO line",
		},
		&cli.IntFlag{
			Name:  "scl",
			Usage: "SCL pin or GPIO line",
		},
		&cli.StringFlag{
			Name:  "variant",
			Usage: "axp192 or axp2101",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(logOut, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		readCmd,
		writeCmd,
		bitCmd,
		fieldCmd,
		dumpCmd,
		statusCmd,
		railCmd,
		mcp2221Cmd,
	}
	return app
}

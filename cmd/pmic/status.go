package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pmic/chip"
	"github.com/mklimuk/pmic/cmd/pmic/console"
)

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "print a snapshot of the power state as YAML",
	Action: func(c *cli.Context) error {
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		status, err := s.status(ctx)
		if err != nil {
			return console.Exit(1, "status error: %s", console.Red(err))
		}
		return printYAML(status)
	},
}

func railArg(c *cli.Context, s *session) (chip.Rail, error) {
	name := c.Args().Get(0)
	r, ok := s.rails[name]
	if !ok {
		return chip.Rail{}, console.Exit(2, "unknown rail %q for %s", name, s.cfg.Variant)
	}
	return r, nil
}

func railSwitch(on bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		r, err := railArg(c, s)
		if err != nil {
			return err
		}
		err = r.Set(ctx, s.dev, on)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		console.PInfof(console.PictoPlug, "%s %s", r.Name, console.OnOff(on))
		return nil
	}
}

var railCmd = &cli.Command{
	Name:  "rail",
	Usage: "list and switch power rails",
	Subcommands: cli.Commands{
		{
			Name: "list",
			Action: func(c *cli.Context) error {
				ctx, s, err := openSession(c)
				if err != nil {
					return err
				}
				defer s.Close()
				names := make([]string, 0, len(s.rails))
				for name := range s.rails {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					r := s.rails[name]
					on, err := r.IsEnabled(ctx, s.dev)
					if err != nil {
						return console.Exit(1, "%s", console.Red(err))
					}
					voltage := console.Faint("fixed")
					if mv, err := r.GetVoltage(ctx, s.dev); err == nil {
						voltage = fmt.Sprintf("%d mV", mv)
					}
					console.Printf("%-6s %s %s\n", name, console.OnOff(on), voltage)
				}
				return nil
			},
		},
		{
			Name:      "on",
			ArgsUsage: "<rail>",
			Action:    railSwitch(true),
		},
		{
			Name:      "off",
			ArgsUsage: "<rail>",
			Action:    railSwitch(false),
		},
		{
			Name:      "voltage",
			ArgsUsage: "<rail> <mV>",
			Action: func(c *cli.Context) error {
				mv, err := strconv.Atoi(c.Args().Get(1))
				if err != nil {
					return console.Exit(2, "invalid voltage %q", c.Args().Get(1))
				}
				ctx, s, err := openSession(c)
				if err != nil {
					return err
				}
				defer s.Close()
				r, err := railArg(c, s)
				if err != nil {
					return err
				}
				err = r.SetVoltage(ctx, s.dev, mv)
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				console.PInfof(console.PictoBattery, "%s set to %d mV", r.Name, mv)
				return nil
			},
		},
	},
}

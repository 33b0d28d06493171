package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/cmd/pmic/console"
)

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func argUint8(c *cli.Context, i int, name string) (uint8, error) {
	if c.NArg() <= i {
		return 0, console.Exit(2, "missing %s argument", name)
	}
	v, err := parseUint8(c.Args().Get(i))
	if err != nil {
		return 0, console.Exit(2, "invalid %s %q: %s", name, c.Args().Get(i), err)
	}
	return v, nil
}

// parsePayload accepts hex bytes either joined ("0ce4") or as separate
// arguments ("0x0c 0xe4").
func parsePayload(args []string) ([]byte, error) {
	var joined strings.Builder
	for _, a := range args {
		a = strings.TrimPrefix(strings.ToLower(a), "0x")
		if len(a)%2 == 1 {
			a = "0" + a
		}
		joined.WriteString(a)
	}
	data, err := hex.DecodeString(joined.String())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no data")
	}
	return data, nil
}

var readCmd = &cli.Command{
	Name:      "read",
	Usage:     "read consecutive registers",
	ArgsUsage: "<reg> [count]",
	Action: func(c *cli.Context) error {
		reg, err := argUint8(c, 0, "register")
		if err != nil {
			return err
		}
		count := 1
		if c.NArg() > 1 {
			count, err = strconv.Atoi(c.Args().Get(1))
			if err != nil || count < 1 || int(reg)+count > 256 {
				return console.Exit(2, "invalid count %q", c.Args().Get(1))
			}
		}
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		buf := make([]byte, count)
		err = s.dev.ReadBytes(ctx, reg, buf)
		if err != nil {
			return console.Exit(1, "read error: %s", console.Red(err))
		}
		for i, v := range buf {
			console.Printf("%s: %s\n", console.Faint(fmt.Sprintf("%#04x", int(reg)+i)), console.White(fmt.Sprintf("%#04x", v)))
		}
		return nil
	},
}

var writeCmd = &cli.Command{
	Name:      "write",
	Usage:     "write bytes to consecutive registers",
	ArgsUsage: "<reg> <hex>...",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		reg, err := argUint8(c, 0, "register")
		if err != nil {
			return err
		}
		data, err := parsePayload(c.Args().Tail())
		if err != nil {
			return console.Exit(2, "invalid payload: %s", err)
		}
		if int(reg)+len(data) > 256 {
			return console.Exit(2, "payload runs past the last register")
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %s at %#04x?", hex.EncodeToString(data), reg))
			if err != nil {
				return console.Exit(1, "prompt error: %s", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		err = s.dev.WriteBytes(ctx, reg, data)
		if err != nil {
			return console.Exit(1, "write error: %s", console.Red(err))
		}
		console.Infof("wrote %d byte(s) at %#04x", len(data), reg)
		return nil
	},
}

func bitArgs(c *cli.Context) (uint8, uint8, error) {
	reg, err := argUint8(c, 0, "register")
	if err != nil {
		return 0, 0, err
	}
	bit, err := argUint8(c, 1, "bit")
	if err != nil {
		return 0, 0, err
	}
	if bit > 7 {
		return 0, 0, console.Exit(2, "bit must be 0-7")
	}
	return reg, bit, nil
}

func bitAction(set bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		reg, bit, err := bitArgs(c)
		if err != nil {
			return err
		}
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		var ok bool
		if set {
			ok = s.dev.SetRegisterBit(ctx, reg, bit)
		} else {
			ok = s.dev.ClrRegisterBit(ctx, reg, bit)
		}
		if !ok {
			return console.Exit(1, "could not update bit %d of %#04x", bit, reg)
		}
		console.Printf("%#04x[%d]: %s\n", reg, bit, console.OnOff(set))
		return nil
	}
}

var bitCmd = &cli.Command{
	Name:  "bit",
	Usage: "inspect or change a single register bit",
	Subcommands: cli.Commands{
		{
			Name:      "get",
			ArgsUsage: "<reg> <bit>",
			Action: func(c *cli.Context) error {
				reg, bit, err := bitArgs(c)
				if err != nil {
					return err
				}
				ctx, s, err := openSession(c)
				if err != nil {
					return err
				}
				defer s.Close()
				on, err := s.dev.RegisterBit(ctx, reg, bit)
				if err != nil {
					return console.Exit(1, "read error: %s", console.Red(err))
				}
				console.Printf("%#04x[%d]: %s\n", reg, bit, console.OnOff(on))
				return nil
			},
		},
		{
			Name:      "set",
			ArgsUsage: "<reg> <bit>",
			Action:    bitAction(true),
		},
		{
			Name:      "clr",
			ArgsUsage: "<reg> <bit>",
			Action:    bitAction(false),
		},
	},
}

var fieldCmd = &cli.Command{
	Name:      "field",
	Usage:     "read a value split over two registers",
	ArgsUsage: "<h8l4|h8l5|h6l8|h5l8> <high reg> <low reg>",
	Action: func(c *cli.Context) error {
		layout, err := pmic.ParseFieldLayout(c.Args().Get(0))
		if err != nil {
			return console.Exit(2, "%s", err)
		}
		hi, err := argUint8(c, 1, "high register")
		if err != nil {
			return err
		}
		lo, err := argUint8(c, 2, "low register")
		if err != nil {
			return err
		}
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		v, err := s.dev.ReadField(ctx, layout, hi, lo)
		if err != nil {
			return console.Exit(1, "read error: %s", console.Red(err))
		}
		console.Printf("%s(%#04x,%#04x): %s (%#06x)\n", layout, hi, lo, console.White(v), v)
		return nil
	},
}

var dumpCmd = &cli.Command{
	Name:      "dump",
	Usage:     "print a register map; unreadable registers show as --",
	ArgsUsage: "[from] [to]",
	Action: func(c *cli.Context) error {
		from, to := uint8(0x00), uint8(0xFF)
		var err error
		if c.NArg() > 0 {
			if from, err = argUint8(c, 0, "first register"); err != nil {
				return err
			}
		}
		if c.NArg() > 1 {
			if to, err = argUint8(c, 1, "last register"); err != nil {
				return err
			}
		}
		if to < from {
			return console.Exit(2, "empty range")
		}
		ctx, s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		console.Print("     " + console.Faint("00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f"))
		for row := int(from) &^ 0x0F; row <= int(to); row += 0x10 {
			var line strings.Builder
			fmt.Fprintf(&line, "%s:", console.Faint(fmt.Sprintf("%02x", row)))
			for reg := row; reg < row+0x10; reg++ {
				if reg < int(from) || reg > int(to) {
					line.WriteString("   ")
					continue
				}
				v := s.dev.ReadRegister(ctx, uint8(reg))
				if v < 0 {
					line.WriteString(" --")
					continue
				}
				fmt.Fprintf(&line, " %02x", v)
			}
			console.Print(line.String())
		}
		return nil
	},
}

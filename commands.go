// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ffutop/rrg12/device"
	"github.com/ffutop/rrg12/rrg/state"
)

type command struct {
	args []string
	help string
	run  func(ctx context.Context, dev device.Device, args []string, out io.Writer) error
}

func (c command) usage() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = "<" + a + ">"
	}
	return strings.Join(parts, " ")
}

var commands = map[string]command{
	"identify": {
		help: "discover the device address",
		run: func(ctx context.Context, dev device.Device, _ []string, out io.Writer) error {
			addr, err := dev.Identify(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "address: %d\n", addr)
			if s, ok := dev.(*device.FrameSession); ok {
				if serial, ok := s.Serial(); ok {
					fmt.Fprintf(out, "serial: %d\n", serial)
				}
			}
			return nil
		},
	},
	"check": {
		help: "check the connection (frame protocol only)",
		run: func(ctx context.Context, dev device.Device, _ []string, out io.Writer) error {
			s, ok := dev.(*device.FrameSession)
			if !ok {
				return fmt.Errorf("check is only available on the frame protocol")
			}
			addr, serial, err := s.CheckConnection(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "address: %d\nserial: %d\n", addr, serial)
			return nil
		},
	},
	"state": {
		help: "read both status bytes",
		run: func(ctx context.Context, dev device.Device, _ []string, out io.Writer) error {
			w, err := dev.State(ctx)
			if err != nil {
				return err
			}
			for _, fv := range w.Values() {
				fmt.Fprintln(out, fv)
			}
			return nil
		},
	},
	"flow": {
		help: "read the measured flow",
		run: func(ctx context.Context, dev device.Device, _ []string, out io.Writer) error {
			f, err := dev.ReadFlow(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "measured: %g\n", f.Measured)
			if f.SetpointKnown {
				fmt.Fprintf(out, "setpoint: %g\n", f.Setpoint)
			}
			return nil
		},
	},
	"set-flow": {
		args: []string{"flow"},
		help: "write the setpoint; 0 closes the valve",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid flow %q: %w", args[0], err)
			}
			return dev.WriteFlow(ctx, v)
		},
	},
	"regime": {
		args: []string{"TypeMode", "MeasuringMode"},
		help: "set the control and measuring mode",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			mode, err := parseValue("TypeMode", args[0])
			if err != nil {
				return err
			}
			measuring, err := parseValue("MeasuringMode", args[1])
			if err != nil {
				return err
			}
			return dev.SetRegime(ctx, mode.(state.TypeMode), measuring.(state.MeasuringMode))
		},
	},
	"recovery": {
		args: []string{"Recovery"},
		help: "set the behaviour after loss of the digital setpoint",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := parseValue("Recovery", args[0])
			if err != nil {
				return err
			}
			return dev.SetRecoveryMode(ctx, v.(state.Recovery))
		},
	},
	"plug": {
		args: []string{"Plug"},
		help: "set the valve position",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := parseValue("Plug", args[0])
			if err != nil {
				return err
			}
			return dev.SetPlugMode(ctx, v.(state.Plug))
		},
	},
	"zero": {
		help: "read the zero shift (frame protocol only)",
		run: func(ctx context.Context, dev device.Device, _ []string, out io.Writer) error {
			shift, err := dev.Zero(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "zero: %d\n", shift)
			return nil
		},
	},
	"set-zero": {
		args: []string{"shift"},
		help: "write the zero shift (frame protocol only)",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := strconv.ParseUint(args[0], 0, 16)
			if err != nil {
				return fmt.Errorf("invalid zero shift %q: %w", args[0], err)
			}
			return dev.SetZero(ctx, uint16(v))
		},
	},
	"address": {
		args: []string{"address"},
		help: "move the device to a new network address",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", args[0], err)
			}
			return dev.RedefineAddress(ctx, uint8(v))
		},
	},
	"baud": {
		args: []string{"rate"},
		help: "change the device baud rate",
		run: func(ctx context.Context, dev device.Device, args []string, _ io.Writer) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid baud rate %q: %w", args[0], err)
			}
			return dev.SetBaudrate(ctx, v)
		},
	},
}

// parseValue resolves arg to a member of the named configuration field, by
// label (case-insensitive) or by numeric code.
func parseValue(field, arg string) (state.Value, error) {
	f, ok := state.ConfigTable.Field(field)
	if !ok {
		return nil, fmt.Errorf("unknown field %s", field)
	}
	if n, err := strconv.ParseUint(arg, 0, 8); err == nil {
		if v, ok := f.Domain.Member(uint8(n)); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%s: undefined code %d", field, n)
	}
	for _, code := range f.Domain.Codes() {
		v, _ := f.Domain.Member(code)
		if strings.EqualFold(v.String(), arg) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s: unknown value %q (want one of %s)", field, arg, strings.Join(labels(f.Domain), ", "))
}

func labels(d state.Domain) []string {
	var out []string
	for _, code := range d.Codes() {
		v, _ := d.Member(code)
		out = append(out, v.String())
	}
	return out
}

func usage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: rrgctl [flags] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-10s %-28s %s\n", name, c.usage(), c.help)
	}
	fmt.Fprintf(os.Stderr, "  %-10s %-28s %s\n", "emulate", "<listen-address>", "serve the emulator over TCP (with -t emulator)")
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", fs.FlagUsages())
}

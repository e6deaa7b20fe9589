// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command rrgctl runs one operation against an RRG-12 mass-flow controller.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/rrg12/device"
	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/transport"
	"github.com/ffutop/rrg12/transport/goburrow"
	"github.com/ffutop/rrg12/transport/local"
	"github.com/ffutop/rrg12/transport/rtu"
	rtuovertcp "github.com/ffutop/rrg12/transport/rtu-over-tcp"
	"github.com/ffutop/rrg12/transport/tcp"
	"github.com/ffutop/rrg12/transport/serial"
)

func main() {
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, args, os.Stdout); err != nil {
		slog.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

// run opens the configured device, executes one command and closes the
// transport again.
func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given")
	}
	if args[0] == "emulate" {
		if len(args) != 2 {
			return fmt.Errorf("usage: emulate <listen-address>")
		}
		return emulate(ctx, cfg.Device, args[1])
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != len(cmd.args) {
		return fmt.Errorf("usage: %s %s", args[0], cmd.usage())
	}

	dev, closer, err := openDevice(cfg.Device)
	if err != nil {
		return err
	}
	defer closer.Close()

	slog.Debug("Running command", "command", args[0], "protocol", cfg.Device.Protocol, "transport", cfg.Device.Transport.Type)
	// Every frame command needs the address; without one configured the
	// device is discovered first.
	if _, err := dev.Identify(ctx); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	return cmd.run(ctx, dev, args[1:], out)
}

// openDevice builds the transport stack for cfg and a session on top of it.
// The returned closer owns the transport.
func openDevice(cfg config.DeviceConfig) (device.Device, io.Closer, error) {
	switch cfg.Protocol {
	case config.ProtocolFrame:
		var rw io.ReadWriteCloser
		switch cfg.Transport.Type {
		case config.TransportEmulator:
			rw = local.NewPort(emulator.Open(cfg.Transport.Emulator))
		case config.TransportTCP:
			rw = rtuovertcp.NewConn(cfg.Transport.TCP)
		default:
			rw = serial.New(cfg.Transport.Serial)
		}
		var opts []device.Option
		if cfg.Address != 0 {
			opts = append(opts, device.WithAddress(cfg.Address))
		}
		s, err := device.NewFrameSession(rw, cfg.MaxFlow, opts...)
		if err != nil {
			rw.Close()
			return nil, nil, err
		}
		return s, rw, nil

	case config.ProtocolModbus:
		var (
			client device.RegisterClient
			closer io.Closer
		)
		switch {
		case cfg.Transport.Type == config.TransportEmulator:
			ds := local.NewClient(emulator.Open(cfg.Transport.Emulator))
			client, closer = transport.NewRegisters(ds), ds
		case cfg.Transport.Type == config.TransportTCP && cfg.Transport.TCP.Framing == config.FramingMBAP:
			ds := tcp.NewClient(cfg.Transport.TCP)
			client, closer = transport.NewRegisters(ds), ds
		case cfg.Transport.Type == config.TransportTCP:
			ds := rtuovertcp.NewClient(cfg.Transport.TCP)
			client, closer = transport.NewRegisters(ds), ds
		case cfg.Transport.Driver == config.DriverGoburrow:
			c := goburrow.NewClient(cfg.Transport.Serial)
			client, closer = c, c
		default:
			ds := rtu.NewClient(cfg.Transport.Serial)
			client, closer = transport.NewRegisters(ds), ds
		}
		s, err := device.NewModbusSession(client, cfg.Address, cfg.MaxFlow)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		return s, closer, nil
	}
	return nil, nil, fmt.Errorf("unknown protocol %q", cfg.Protocol)
}

// emulate serves the configured emulator on a TCP socket until ctx is done,
// so that another rrgctl can reach it with the tcp transport.
func emulate(ctx context.Context, cfg config.DeviceConfig, address string) error {
	if cfg.Transport.Type != config.TransportEmulator {
		return fmt.Errorf("emulate needs the emulator transport, got %q", cfg.Transport.Type)
	}
	emu := emulator.Open(cfg.Transport.Emulator)
	defer emu.Close()

	if cfg.Transport.TCP.Framing == config.FramingMBAP {
		return tcp.NewServer(address, emu).Start(ctx)
	}
	return rtuovertcp.NewServer(address, cfg.Protocol, emu).Start(ctx)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	// Command output goes to stdout, so logs default to stderr.
	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

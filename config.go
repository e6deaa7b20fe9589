// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/rrg12/internal/config"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"protocol":  "device.protocol",
	"max_flow":  "device.max_flow",
	"address":   "device.address",
	"transport": "device.transport.type",
	"driver":    "device.transport.driver",
	"device":    "device.transport.serial.device",
	"baud_rate": "device.transport.serial.baud_rate",
	"timeout":   "device.transport.serial.timeout",
	"tcp":       "device.transport.tcp.address",
	"framing":   "device.transport.tcp.framing",
	"log_level": "log.level",
	"log_file":  "log.file",
}

// loadConfig reads flags from args, then the configuration file, and returns
// the remaining positional arguments.
func loadConfig(args []string) (*config.Config, []string, error) {
	fs := pflag.NewFlagSet("rrgctl", pflag.ContinueOnError)
	fs.Usage = func() { usage(fs) }

	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("protocol", "P", "", "Protocol variant (frame, modbus).")
	fs.Float64P("max_flow", "m", 0, "Calibrated full-scale flow.")
	fs.Uint8P("address", "a", 0, "Device address; required for modbus.")
	fs.StringP("transport", "t", "", "Transport type (serial, tcp, emulator).")
	fs.StringP("driver", "d", "", "Modbus driver for serial (native, goburrow).")
	fs.StringP("device", "p", "", "Serial port device name.")
	fs.IntP("baud_rate", "s", 0, "Serial port speed.")
	fs.StringP("tcp", "T", "", "Serial device server or Modbus TCP gateway address (host:port).")
	fs.StringP("framing", "F", "", "TCP framing (raw, mbap).")
	fs.DurationP("timeout", "W", 0, "Response wait time.")
	fs.StringP("log_level", "v", "", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for STDERR).")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/rrgctl/")
		v.AddConfigPath("$HOME/.rrgctl")
		v.AddConfigPath(".")
	}

	cfg, err := config.LoadViper(v)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, fs.Args(), nil
}

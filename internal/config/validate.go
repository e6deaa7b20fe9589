// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"math"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	d := cfg.Device

	switch d.Protocol {
	case ProtocolFrame, ProtocolModbus:
	default:
		return fmt.Errorf("device: unknown protocol %q", d.Protocol)
	}

	if math.IsNaN(d.MaxFlow) || math.IsInf(d.MaxFlow, 0) || d.MaxFlow <= 0 {
		return fmt.Errorf("device: max_flow must be positive, got %v", d.MaxFlow)
	}

	if d.Protocol == ProtocolModbus && (d.Address == 0 || d.Address > 247) {
		return fmt.Errorf("device: modbus address must be in 1-247, got %d", d.Address)
	}

	t := d.Transport
	switch t.Type {
	case TransportSerial:
		if t.Serial.Device == "" {
			return fmt.Errorf("transport: serial device is required")
		}
		switch t.Serial.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("transport: parity must be N, E or O, got %q", t.Serial.Parity)
		}
		switch t.Driver {
		case DriverNative:
		case DriverGoburrow:
			if d.Protocol != ProtocolModbus {
				return fmt.Errorf("transport: driver %q only speaks modbus", t.Driver)
			}
		default:
			return fmt.Errorf("transport: unknown driver %q", t.Driver)
		}
	case TransportTCP:
		if t.TCP.Address == "" {
			return fmt.Errorf("transport: tcp address is required")
		}
		if t.TCP.Timeout < 0 {
			return fmt.Errorf("transport: tcp timeout must not be negative")
		}
		if err := validateFraming(d.Protocol, t.TCP.Framing); err != nil {
			return err
		}
	case TransportEmulator:
		switch t.Emulator.Persistence.Type {
		case "memory":
		case "file", "mmap", "sqlite":
			if t.Emulator.Persistence.Path == "" {
				return fmt.Errorf("transport: emulator persistence %q needs a path", t.Emulator.Persistence.Type)
			}
		default:
			return fmt.Errorf("transport: unknown emulator persistence %q", t.Emulator.Persistence.Type)
		}
		if d.Protocol == ProtocolModbus && t.Emulator.Address != d.Address {
			return fmt.Errorf("transport: emulator address %d does not match device address %d", t.Emulator.Address, d.Address)
		}
	default:
		return fmt.Errorf("transport: unknown type %q", t.Type)
	}

	// emulate serves the emulator with the tcp framing.
	if t.Type == TransportEmulator && t.TCP.Framing != "" {
		if err := validateFraming(d.Protocol, t.TCP.Framing); err != nil {
			return err
		}
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}

	return nil
}

func validateFraming(protocol, framing string) error {
	switch framing {
	case FramingRaw:
	case FramingMBAP:
		if protocol != ProtocolModbus {
			return fmt.Errorf("transport: framing %q only carries modbus", framing)
		}
	default:
		return fmt.Errorf("transport: unknown tcp framing %q", framing)
	}
	return nil
}

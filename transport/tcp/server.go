// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/modbus"
)

// Server implements a Modbus TCP Server in front of an emulator, the way a
// Modbus TCP gateway fronts a real controller.
type Server struct {
	Address string

	emu *emulator.Emulator

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new TCP Server.
func NewServer(address string, emu *emulator.Emulator) *Server {
	return &Server{
		Address: address,
		emu:     emu,
	}
}

// Listen opens the listening socket. Start calls it if needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts the TCP server.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	listener := s.listener
	slog.Info("Modbus TCP server listening", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// Close closes the server listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("New TCP client connected", "addr", conn.RemoteAddr())

	for ctx.Err() == nil {
		raw, err := readFrame(conn)
		if err != nil {
			if err == io.EOF {
				slog.Info("TCP client disconnected gracefully", "addr", conn.RemoteAddr())
			} else {
				slog.Error("Failed to read from connection", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		adu, err := Decode(raw)
		if err != nil {
			slog.Error("Failed to decode TCP request", "err", err)
			continue
		}

		// A gateway answers for a unit that stays silent on the line.
		var respPdu modbus.ProtocolDataUnit
		if adu.SlaveID != s.emu.Address() {
			respPdu = modbus.NewException(adu.Pdu.FunctionCode, modbus.ExceptionCodeGatewayTargetDeviceFailedToRespond)
		} else if respPdu, err = s.emu.Process(adu.Pdu); err != nil {
			slog.Error("Handler failed", "err", err)
			respPdu = modbus.NewException(adu.Pdu.FunctionCode, modbus.ExceptionCodeServerDeviceFailure)
		}

		respAdu := &ApplicationDataUnit{
			TransactionID: adu.TransactionID,
			ProtocolID:    adu.ProtocolID,
			SlaveID:       adu.SlaveID,
			Pdu:           respPdu,
		}

		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode TCP response", "err", err)
			continue
		}

		if _, err = conn.Write(respRaw); err != nil {
			slog.Error("Failed to write response to connection", "err", err)
			return
		}
	}
}

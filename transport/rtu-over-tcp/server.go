// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/modbus"
	rtupacket "github.com/ffutop/rrg12/modbus/rtu"
	"github.com/ffutop/rrg12/rrg/frame"
)

// Server exposes an emulator the way a serial device server exposes a real
// controller: each TCP connection is a raw byte stream of either frame
// protocol or Modbus RTU traffic.
type Server struct {
	Address  string
	Protocol string

	emu *emulator.Emulator

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server for emu speaking protocol (config.ProtocolFrame
// or config.ProtocolModbus).
func NewServer(address, protocol string, emu *emulator.Emulator) *Server {
	return &Server{
		Address:  address,
		Protocol: protocol,
		emu:      emu,
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

// Start accepts connections until ctx is done or the server is closed.
func (s *Server) Start(ctx context.Context) error {
	var handle func(context.Context, net.Conn)
	switch s.Protocol {
	case config.ProtocolFrame:
		handle = s.handleFrames
	case config.ProtocolModbus:
		handle = s.handleRTU
	default:
		return fmt.Errorf("unknown protocol %q", s.Protocol)
	}

	if err := s.Listen(); err != nil {
		return err
	}
	listener := s.listener
	slog.Info("Emulator listening", "addr", listener.Addr(), "protocol", s.Protocol)

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
		go handle(ctx, conn)
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

func (s *Server) handleFrames(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("New frame client connected", "addr", conn.RemoteAddr())

	var req frame.Frame
	for ctx.Err() == nil {
		if _, err := io.ReadFull(conn, req[:]); err != nil {
			if err != io.EOF {
				slog.Error("Connection read error", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		resp, ok := s.emu.HandleFrame(req)
		if !ok {
			continue
		}
		if _, err := conn.Write(resp.Bytes()); err != nil {
			slog.Error("Failed to write response", "err", err)
			return
		}
	}
}

func (s *Server) handleRTU(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("New RTU over TCP client connected", "addr", conn.RemoteAddr())

	buf := make([]byte, rtupacket.MaxSize)

	for ctx.Err() == nil {
		// 7 bytes cover ByteCount for write-multiple requests.
		if _, err := io.ReadFull(conn, buf[:7]); err != nil {
			if err != io.EOF {
				slog.Error("Connection read error", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		expectedLen, err := rtupacket.CalculateRequestLength(buf[:7])
		if err != nil || expectedLen > len(buf) {
			// The stream cannot be resynchronized; drop the client.
			slog.Warn("Invalid RTU frame header", "func", buf[1], "err", err)
			return
		}
		if _, err := io.ReadFull(conn, buf[7:expectedLen]); err != nil {
			return
		}

		adu, err := rtupacket.Decode(buf[:expectedLen])
		if err != nil {
			slog.Warn("RTU frame decode failed", "err", err)
			continue
		}
		// Other slaves on a real bus would answer; here nobody does.
		if adu.SlaveID != s.emu.Address() {
			continue
		}

		respPdu, err := s.emu.Process(adu.Pdu)
		if err != nil {
			slog.Error("Handler failed", "err", err)
			respPdu = modbus.NewException(adu.Pdu.FunctionCode, modbus.ExceptionCodeServerDeviceFailure)
		}

		respAdu := &rtupacket.ApplicationDataUnit{
			SlaveID: adu.SlaveID,
			Pdu:     respPdu,
		}
		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode response", "err", err)
			continue
		}
		if _, err := conn.Write(respRaw); err != nil {
			slog.Error("Failed to write response", "err", err)
			return
		}
	}
}

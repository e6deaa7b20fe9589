// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp speaks Modbus TCP to a gateway in front of the RS-485 line,
// and serves the emulator the same way.
package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/modbus"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client implements Downstream interface (Modbus TCP Client).
type Client struct {
	Address string
	Timeout time.Duration

	transactionID uint32 // Atomic counter
}

// NewClient allocates and initializes a TCP Client.
func NewClient(cfg config.TCPConfig) *Client {
	c := &Client{
		Address: cfg.Address,
		Timeout: cfg.Timeout,
	}
	if c.Timeout <= 0 {
		c.Timeout = tcpTimeout
	}
	return c
}

// Send sends a PDU to a Slave (Downstream) and returns the response PDU.
// Each request uses its own connection; gateways commonly drop idle clients.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	tid := uint16(atomic.AddUint32(&mb.transactionID, 1))

	adu := &ApplicationDataUnit{
		TransactionID: tid,
		ProtocolID:    0,
		SlaveID:       slaveID, // Unit Identifier
		Pdu:           pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	d := net.Dialer{Timeout: mb.Timeout}
	conn, err := d.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: failed to connect to %s: %w", mb.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(mb.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respBytes, err := mb.sendAndRead(conn, aduBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respAdu, err := Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

func (mb *Client) sendAndRead(conn net.Conn, aduRequest []byte) ([]byte, error) {
	slog.Debug("send to modbus tcp gateway", "addr", mb.Address, "request", hex.EncodeToString(aduRequest))
	if _, err := conn.Write(aduRequest); err != nil {
		return nil, err
	}

	response, err := readFrame(conn)
	if err != nil {
		return nil, err
	}

	slog.Debug("recv from modbus tcp gateway", "response", hex.EncodeToString(response))
	return response, nil
}

// readFrame reads one MBAP header and the bytes it announces.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := int(header[4])<<8 | int(header[5])
	if length < 2 || 6+length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: invalid length in header: %d", length)
	}

	frame := make([]byte, 6+length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[6:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// Connect implements Connector interface.
func (mb *Client) Connect(ctx context.Context) error {
	_, err := net.ResolveTCPAddr("tcp", mb.Address)
	return err
}

// Close implements Connector interface.
func (mb *Client) Close() error {
	return nil
}

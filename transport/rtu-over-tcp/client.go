// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/modbus"
	rtupacket "github.com/ffutop/rrg12/modbus/rtu"
)

// Client implements Downstream interface (Modbus RTU over TCP Client).
type Client struct {
	*Conn
}

// NewClient allocates and initializes a TCP Client.
func NewClient(cfg config.TCPConfig) *Client {
	return &Client{Conn: NewConn(cfg)}
}

// Send sends a PDU to a Slave (Downstream) and returns the response PDU.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	adu := &rtupacket.ApplicationDataUnit{
		SlaveID: slaveID,
		Pdu:     pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	var respBytes []byte
	err = mb.Conn.Do(ctx, func(rw io.ReadWriter) error {
		slog.Debug("send to modbus slave over tcp", "addr", mb.Address, "request", hex.EncodeToString(aduBytes))
		if _, err := rw.Write(aduBytes); err != nil {
			return fmt.Errorf("failed to write to connection: %w", err)
		}
		// RTU over TCP is plain RTU framing on a stream.
		respBytes, err = rtupacket.ReadResponse(slaveID, pdu.FunctionCode, rw, time.Now().Add(mb.Timeout))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		slog.Debug("recv from modbus slave over tcp", "response", hex.EncodeToString(respBytes))
		return nil
	})
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	// A CRC error does not break the stream; keep the connection.
	respAdu, err := rtupacket.Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

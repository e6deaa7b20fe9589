// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

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
	"github.com/ffutop/rrg12/transport/serial"
)

// Client implements Downstream interface (Modbus RTU Master).
type Client struct {
	*serial.Port
}

// NewClient allocates and initializes a RTU Client.
func NewClient(cfg config.SerialConfig) *Client {
	return &Client{Port: serial.New(cfg)}
}

// NewClientOnPort shares an existing line.
func NewClientOnPort(p *serial.Port) *Client {
	return &Client{Port: p}
}

// Send sends a PDU to the Downstream Slave
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	// Wrap PDU into RTU ADU
	adu := &rtupacket.ApplicationDataUnit{
		SlaveID: slaveID,
		Pdu:     pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	var respBytes []byte
	err = mb.Port.Do(ctx, func(rw io.ReadWriter) (err error) {
		respBytes, err = mb.exchange(ctx, rw, aduBytes)
		return
	})
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	// Decode Response
	respAdu, err := rtupacket.Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	// Verify
	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

func (mb *Client) exchange(ctx context.Context, rw io.ReadWriter, aduRequest []byte) ([]byte, error) {
	slog.Debug("send to modbus slave", "request", hex.EncodeToString(aduRequest))
	if _, err := rw.Write(aduRequest); err != nil {
		return nil, err
	}

	bytesToRead := rtupacket.CalculateResponseLength(aduRequest)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mb.calculateDelay(len(aduRequest) + bytesToRead)):
	}

	data, err := rtupacket.ReadResponse(aduRequest[0], aduRequest[1], rw, time.Now().Add(mb.Port.Timeout))
	if err != nil {
		return nil, err
	}
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(data))
	return data, nil
}

// calculateDelay calculates the needed delay to separate frames.
func (mb *Client) calculateDelay(chars int) time.Duration {
	var characterDelay, frameDelay int

	if mb.Port.BaudRate <= 0 || mb.Port.BaudRate > 19200 {
		characterDelay = 750
		frameDelay = 1750
	} else {
		characterDelay = 15000000 / mb.Port.BaudRate
		frameDelay = 35000000 / mb.Port.BaudRate
	}
	return time.Duration(characterDelay*chars+frameDelay) * time.Microsecond
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtuovertcp reaches an RS-485 line through a serial device server
// that forwards raw bytes over TCP, and serves the emulator the same way.
package rtuovertcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ffutop/rrg12/internal/config"
)

const (
	tcpTimeout = 10 * time.Second
)

// Conn is a byte stream to a serial device server. It dials on first use and
// drops the connection after any I/O error so the next call redials.
type Conn struct {
	Address string
	Timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewConn allocates a Conn for cfg.
func NewConn(cfg config.TCPConfig) *Conn {
	c := &Conn{
		Address: cfg.Address,
		Timeout: cfg.Timeout,
	}
	if c.Timeout <= 0 {
		c.Timeout = tcpTimeout
	}
	return c
}

// Connect dials if there is no open connection.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(context.Background()); err != nil {
		return 0, err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
		c.close()
		return 0, err
	}
	n, err := c.conn.Write(b)
	if err != nil {
		c.close()
	}
	return n, err
}

func (c *Conn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(context.Background()); err != nil {
		return 0, err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.Timeout)); err != nil {
		c.close()
		return 0, err
	}
	n, err := c.conn.Read(b)
	if err != nil {
		c.close()
	}
	return n, err
}

// Do runs fn with exclusive use of the connection. The deadline is the
// earlier of ctx's and Timeout from now.
func (c *Conn) Do(ctx context.Context, fn func(rw io.ReadWriter) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.connect(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.close()
		return err
	}
	if err := fn(c.conn); err != nil {
		// The stream position is unknown after a failed exchange.
		c.close()
		return err
	}
	return nil
}

// Close closes the connection. A later call redials.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return nil
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (c *Conn) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Address, err)
	}
	c.conn = conn
	return nil
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (c *Conn) close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial manages the lifecycle of one serial line shared by the
// frame and Modbus RTU transports.
package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/rrg12/internal/config"
	gxserial "github.com/grid-x/serial"
)

const (
	// Default timeout
	serialTimeout     = 5 * time.Second
	serialIdleTimeout = 60 * time.Second

	// maxDiscard bounds what is dropped after a failed exchange before the
	// line is reopened instead.
	maxDiscard = 256
)

// Port has configuration and I/O controller.
// Read and Write open the line on first use.
type Port struct {
	// Serial port configuration.
	gxserial.Config

	IdleTimeout time.Duration
	// Pause is the minimum quiet time before a request is written.
	Pause time.Duration

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

// New maps cfg onto a closed Port.
func New(cfg config.SerialConfig) *Port {
	p := &Port{IdleTimeout: serialIdleTimeout, Pause: cfg.RqstPause}
	p.Config.Address = cfg.Device
	p.Config.BaudRate = cfg.BaudRate
	p.Config.DataBits = cfg.DataBits
	p.Config.StopBits = cfg.StopBits
	p.Config.Parity = cfg.Parity
	p.Config.Timeout = cfg.Timeout
	if p.Config.Timeout <= 0 {
		p.Config.Timeout = serialTimeout
	}
	return p
}

// Attach uses rw as the already open line, e.g. a pty or a test double.
func (p *Port) Attach(rw io.ReadWriteCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.port = rw
}

func (p *Port) Connect(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect(ctx)
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (p *Port) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port == nil {
		port, err := gxserial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		p.port = port
		slog.Debug("serial port opened", "device", p.Config.Address, "baudRate", p.Config.BaudRate)
	}
	return nil
}

// IsOpen reports whether the line is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.port != nil
}

func (p *Port) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (p *Port) close() (err error) {
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}

// Do runs fn with exclusive use of the open line. When fn fails, the rest of
// a late or partial response is drained so that the next request starts on a
// quiet line.
func (p *Port) Do(ctx context.Context, fn func(rw io.ReadWriter) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(ctx); err != nil {
		return err
	}
	p.pause()
	p.touch()
	if err := fn(p.port); err != nil {
		p.discard()
		return err
	}
	return nil
}

// discard reads until the line times out. Caller must hold the mutex.
func (p *Port) discard() {
	buf := make([]byte, 64)
	dropped := 0
	for dropped < maxDiscard {
		n, err := p.port.Read(buf)
		dropped += n
		if err != nil || n == 0 {
			break
		}
	}
	if dropped > 0 {
		slog.Debug("serial: discarded stale input", "bytes", dropped)
	}
	if dropped >= maxDiscard {
		slog.Warn("serial: line does not go quiet, reopening", "device", p.Config.Address)
		p.close()
	}
	p.lastActivity = time.Now()
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(context.Background()); err != nil {
		return 0, err
	}
	p.pause()
	p.touch()
	return p.port.Write(b)
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(context.Background()); err != nil {
		return 0, err
	}
	p.touch()
	return p.port.Read(b)
}

// pause waits out the rest of Pause since the last activity. Caller must hold the mutex.
func (p *Port) pause() {
	if p.Pause <= 0 || p.lastActivity.IsZero() {
		return
	}
	if wait := p.Pause - time.Since(p.lastActivity); wait > 0 {
		time.Sleep(wait)
	}
}

// touch records activity and rearms the idle timer. Caller must hold the mutex.
func (p *Port) touch() {
	p.lastActivity = time.Now()
	p.startCloseTimer()
}

func (p *Port) startCloseTimer() {
	if p.IdleTimeout <= 0 {
		return
	}
	if p.closeTimer == nil {
		p.closeTimer = time.AfterFunc(p.IdleTimeout, p.closeIdle)
	} else {
		p.closeTimer.Reset(p.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (p *Port) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(p.lastActivity); idle >= p.IdleTimeout {
		slog.Debug("serial: closing connection due to idle timeout", "idle", idle)
		p.close()
	}
}

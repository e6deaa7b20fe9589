// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"bytes"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"

	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/rrg/frame"
)

// Port is a byte stream to the emulator speaking the proprietary frame
// protocol. Every complete 10-byte frame written is answered immediately;
// reading with nothing pending fails with ErrNoResponse, where a real line
// would time out.
type Port struct {
	emu *emulator.Emulator

	mu     sync.Mutex
	rx     []byte // partial request
	tx     bytes.Buffer
	closed bool
}

// NewPort takes ownership of emu.
func NewPort(emu *emulator.Emulator) *Port {
	return &Port{emu: emu}
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}

	p.rx = append(p.rx, b...)
	for len(p.rx) >= frame.Size {
		var req frame.Frame
		copy(req[:], p.rx[:frame.Size])
		p.rx = p.rx[frame.Size:]

		resp, ok := p.emu.HandleFrame(req)
		if !ok {
			slog.Debug("emulator stayed silent", "request", hex.EncodeToString(req.Bytes()))
			continue
		}
		p.tx.Write(resp.Bytes())
	}
	return len(b), nil
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.tx.Len() == 0 {
		return 0, ErrNoResponse
	}
	return p.tx.Read(b)
}

// Close closes the emulator storage.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.emu.Close()
}

// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"testing"
)

func TestException(t *testing.T) {
	ok := ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: []byte{0x02, 0x00, 0x01}}
	if ok.Exception() != nil {
		t.Errorf("normal response reported an exception")
	}

	exc := NewException(FuncCodeWriteSingleRegister, ExceptionCodeIllegalDataAddress)
	if exc.FunctionCode != 0x86 {
		t.Errorf("FunctionCode = %#02x, want 0x86", exc.FunctionCode)
	}
	var eerr *ExceptionError
	if !errors.As(exc.Exception(), &eerr) {
		t.Fatalf("Exception() = %v, want *ExceptionError", exc.Exception())
	}
	if eerr.ExceptionCode != ExceptionCodeIllegalDataAddress {
		t.Errorf("ExceptionCode = %d", eerr.ExceptionCode)
	}
}

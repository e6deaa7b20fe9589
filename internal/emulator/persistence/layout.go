// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/ffutop/rrg12/internal/emulator/model"
)

// totalSize is the on-disk size: every slot, public and private, in host order.
const totalSize = model.Size * 2

// mapBytesToModel constructs a DataModel backed by the provided data slice.
// Warning: the slots are read in host byte order, so a file written on one
// architecture is not portable to one with different endianness.
func mapBytesToModel(data []byte) *model.DataModel {
	return &model.DataModel{
		Registers: unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), model.Size),
	}
}

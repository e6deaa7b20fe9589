// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

// Table of CRC values for the reflected 0xA001 polynomial.
var table [256]uint16

func init() {
	for i := range table {
		v := uint16(i)
		for j := 0; j < 8; j++ {
			if v&1 != 0 {
				v = v>>1 ^ 0xA001
			} else {
				v >>= 1
			}
		}
		table[i] = v
	}
}

// CRC is the Modbus CRC-16. The low byte of Value is transmitted first.
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = 0xFFFF
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.value = crc.value>>8 ^ table[byte(crc.value)^b]
	}
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rrg

// Line speeds accepted by the device and the code it expects for each.
var baudrateCodes = map[int]uint8{
	9600:  0x00,
	19200: 0xFF,
	38400: 0x01,
}

// BaudrateCode returns the on-wire code for a supported line speed.
func BaudrateCode(rate int) (uint8, error) {
	code, ok := baudrateCodes[rate]
	if !ok {
		return 0, &ValidationError{Field: "baudrate", Value: rate, Reason: "must be one of 9600, 19200, 38400"}
	}
	return code, nil
}

// BaudrateFromCode is the inverse of BaudrateCode.
func BaudrateFromCode(code uint8) (int, bool) {
	for rate, c := range baudrateCodes {
		if c == code {
			return rate, true
		}
	}
	return 0, false
}

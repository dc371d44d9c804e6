// Package crc provides the CRC-16/CCITT primitive used by the link framing.
package crc

import "github.com/sigurn/crc16"

// Params are the CCITT parameters used on the wire: polynomial 0x1021,
// initial value 0x0000, no reflection and no final xor (a.k.a. XMODEM).
var Params = crc16.CRC16_XMODEM

var table = crc16.MakeTable(Params)

// Init returns the initial accumulator value.
func Init() uint16 {
	return crc16.Init(table)
}

// Update folds one byte into the accumulator.
func Update(acc uint16, b byte) uint16 {
	buf := [1]byte{b}
	return crc16.Update(acc, buf[:], table)
}

// Checksum computes the CRC of a complete byte sequence.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

package link

import "github.com/robotalks/classb/pkg/crc"

const (
	// STX marks the start of a frame. It is never stuffed.
	STX byte = 0x02
	// ESC marks a stuffed byte: the next byte is the original value plus one.
	ESC byte = 0x1b
	// MaxPayload is the largest payload a single frame carries.
	MaxPayload = 255
	// MaxFrameSize is the largest wire size of a frame when every byte is stuffed.
	MaxFrameSize = 1 + 2*(2+MaxPayload+2)
)

// Packet is a decoded frame.
type Packet struct {
	Address byte
	Payload []byte
	CRC     uint16
}

// NeedsEscape tells whether a logical byte must be sent as ESC, b+1.
func NeedsEscape(b byte) bool {
	return b == STX || b == ESC
}

// ValidPayload checks the payload length is within 1..MaxPayload.
func ValidPayload(payload []byte) bool {
	return len(payload) > 0 && len(payload) <= MaxPayload
}

// Checksum computes the frame CRC of a packet.
func Checksum(addr byte, payload []byte) uint16 {
	acc := crc.Update(crc.Init(), addr)
	acc = crc.Update(acc, byte(len(payload)))
	for _, b := range payload {
		acc = crc.Update(acc, b)
	}
	return acc
}

// AppendFrame appends the wire encoding of a packet to dst.
func AppendFrame(dst []byte, addr byte, payload []byte) ([]byte, error) {
	if !ValidPayload(payload) {
		return dst, ErrInvalidLength
	}
	var tx Transmitter
	tx.Begin(addr, payload)
	for {
		b, ok := tx.Next()
		if !ok {
			return dst, nil
		}
		dst = append(dst, b)
	}
}

// Bytes returns the wire encoding of the packet.
func (p *Packet) Bytes() ([]byte, error) {
	return AppendFrame(make([]byte, 0, len(p.Payload)+6), p.Address, p.Payload)
}

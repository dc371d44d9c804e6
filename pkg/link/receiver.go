package link

import (
	"github.com/golang/glog"

	"github.com/robotalks/classb/pkg/crc"
)

type rxState int

const (
	rxAwaitStart rxState = iota // waiting for STX
	rxAddress                   // waiting for address
	rxLength                    // waiting for payload length
	rxData                      // waiting for payload bytes
	rxCRCHigh                   // waiting for CRC high byte
	rxCRCLow                    // waiting for CRC low byte
	rxDone                      // frame accepted, waiting for next STX
)

// Receiver de-stuffs and validates incoming wire bytes, one byte per call.
// Payload bytes are stored into a caller supplied buffer.
type Receiver struct {
	// AnyAddress accepts frames for any address.
	AnyAddress bool

	state    rxState
	addr     byte
	gotAddr  byte
	buf      []byte
	stored   int
	count    int
	length   byte
	crc      uint16
	escape   bool
	discards int
}

// Begin arms the receiver for frames addressed to addr.
func (r *Receiver) Begin(addr byte, buf []byte) {
	r.addr, r.buf = addr, buf
	r.state, r.escape = rxAwaitStart, false
	r.stored, r.count, r.length = 0, 0, 0
}

// Done tells whether a verified frame has been received.
func (r *Receiver) Done() bool {
	return r.state == rxDone
}

// Address returns the address of the last received frame.
func (r *Receiver) Address() byte {
	return r.gotAddr
}

// Len returns the number of payload bytes stored in the buffer.
func (r *Receiver) Len() int {
	return r.stored
}

// DeclaredLen returns the payload length announced by the frame.
func (r *Receiver) DeclaredLen() int {
	return int(r.length)
}

// Truncated tells whether the payload was larger than the buffer.
func (r *Receiver) Truncated() bool {
	return int(r.length) > r.stored
}

// Data returns the stored payload bytes.
func (r *Receiver) Data() []byte {
	return r.buf[:r.stored]
}

// CRC returns the CRC accumulated over the logical bytes received so far.
func (r *Receiver) CRC() uint16 {
	return r.crc
}

// Discards returns how many partial or invalid frames were dropped.
func (r *Receiver) Discards() int {
	return r.discards
}

// Feed consumes one raw byte and returns true when a frame has been accepted.
// ESC ESC, or ESC followed by a byte other than STX+1 or ESC+1, discards the frame.
func (r *Receiver) Feed(b byte) bool {
	if b == STX {
		if r.state != rxAwaitStart && r.state != rxDone {
			r.discard("restarted by STX")
		}
		r.state, r.escape = rxAddress, false
		r.crc, r.stored, r.count, r.length = crc.Init(), 0, 0, 0
		return false
	}
	if r.state == rxAwaitStart || r.state == rxDone {
		return false
	}
	if b == ESC {
		if r.escape {
			r.discard("double escape")
			return false
		}
		r.escape = true
		return false
	}
	if r.escape {
		r.escape = false
		b--
		if !NeedsEscape(b) {
			r.discard("invalid escape sequence")
			return false
		}
	}

	switch r.state {
	case rxAddress:
		if !r.AnyAddress && b != r.addr {
			r.discard("address mismatch")
			return false
		}
		r.gotAddr = b
		r.crc = crc.Update(r.crc, b)
		r.state = rxLength
	case rxLength:
		if b == 0 {
			r.discard("zero length")
			return false
		}
		r.crc = crc.Update(r.crc, b)
		r.length, r.count, r.stored = b, 0, 0
		r.state = rxData
	case rxData:
		r.crc = crc.Update(r.crc, b)
		if r.stored < len(r.buf) {
			r.buf[r.stored] = b
			r.stored++
		}
		if r.count++; r.count >= int(r.length) {
			r.state = rxCRCHigh
		}
	case rxCRCHigh:
		if b != byte(r.crc>>8) {
			r.discard("CRC mismatch")
			return false
		}
		r.state = rxCRCLow
	case rxCRCLow:
		if b != byte(r.crc) {
			r.discard("CRC mismatch")
			return false
		}
		r.state = rxDone
		if r.Truncated() {
			glog.V(2).Infof("frame %02x: payload truncated %d/%d", r.gotAddr, r.stored, r.length)
		}
		return true
	}
	return false
}

func (r *Receiver) discard(reason string) {
	r.discards++
	r.state, r.escape = rxAwaitStart, false
	glog.V(2).Infof("frame discarded: %s", reason)
}

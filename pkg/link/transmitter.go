package link

import "github.com/robotalks/classb/pkg/crc"

type txState int

const (
	txNotStarted txState = iota // STX not sent yet
	txAddress                   // sending address
	txLength                    // sending payload length
	txData                      // sending payload bytes
	txCRCHigh                   // sending CRC high byte
	txCRCLow                    // sending CRC low byte
	txDone                      // frame complete
)

// Transmitter serializes one packet into stuffed wire bytes, one byte per call.
// The payload is owned by the caller and must not change until Done.
type Transmitter struct {
	state  txState
	addr   byte
	data   []byte
	pos    int
	crc    uint16
	escape bool
}

// Begin resets the transmitter for a new frame.
func (t *Transmitter) Begin(addr byte, payload []byte) {
	t.state, t.addr, t.data, t.pos, t.escape = txNotStarted, addr, payload, 0, false
}

// Done tells whether the whole frame has been emitted.
func (t *Transmitter) Done() bool {
	return t.state == txDone
}

// CRC returns the accumulated CRC of the bytes logically sent so far.
func (t *Transmitter) CRC() uint16 {
	return t.crc
}

// Next returns the next wire byte, or false when the frame is complete.
func (t *Transmitter) Next() (byte, bool) {
	switch t.state {
	case txNotStarted:
		t.crc, t.escape = crc.Init(), false
		t.state = txAddress
		return STX, true
	case txAddress:
		return t.emit(t.addr, true, txLength), true
	case txLength:
		next := txData
		if len(t.data) == 0 {
			next = txCRCHigh
		}
		return t.emit(byte(len(t.data)), true, next), true
	case txData:
		next := txData
		if t.pos+1 >= len(t.data) {
			next = txCRCHigh
		}
		b := t.emit(t.data[t.pos], true, next)
		if !t.escape {
			t.pos++
		}
		return b, true
	case txCRCHigh:
		return t.emit(byte(t.crc>>8), false, txCRCLow), true
	case txCRCLow:
		return t.emit(byte(t.crc), false, txDone), true
	}
	return 0, false
}

// emit sends the logical byte v of the current state, stuffing it when needed.
// The CRC is folded the first time v is considered, the state only advances
// once the byte is fully on the wire.
func (t *Transmitter) emit(v byte, fold bool, next txState) byte {
	if t.escape {
		t.escape = false
		t.state = next
		return v + 1
	}
	if fold {
		t.crc = crc.Update(t.crc, v)
	}
	if NeedsEscape(v) {
		t.escape = true
		return ESC
	}
	t.state = next
	return v
}

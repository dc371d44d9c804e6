// Package link provides the framed master/slave protocol of the self-test link.
package link

// The link exchanges one request and one response at a time between a
// master and a slave over a byte-serial channel. Each packet travels as
//
//	STX ADDR' DL' DATA'... CRCH' CRCL'
//
// where every primed byte equal to STX or ESC is sent as ESC, value+1.
// STX therefore never occurs inside a frame and any received STX restarts
// the receiver, which is how the link resynchronizes after corruption.
// The CRC is CRC-16/CCITT (init 0) over the logical ADDR, DL and DATA bytes.
//
// Both roles are non-blocking state machines driven by explicit events
// (OnTxReady, OnRxByte, OnTxComplete and, for the master, the guard timer).
// Framing faults are recovered silently; the only failure reported to the
// application is the master's guard timer expiring.
//
// Producer/Consumer: symmetric, master initiates.

package link

// PacketHandler is called when a packet is decoded.
type PacketHandler interface {
	HandlePacket(*Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(*Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(pkt *Packet) {
	f(pkt)
}

// Decoder extracts verified frames for any address from a byte stream.
// It is meant for passive observers; it never drives a transport.
type Decoder struct {
	Handler PacketHandler

	rx  Receiver
	buf [MaxPayload]byte
}

// NewDecoder creates a Decoder.
func NewDecoder(h PacketHandler) *Decoder {
	d := &Decoder{Handler: h}
	d.rx.AnyAddress = true
	d.rx.Begin(0, d.buf[:])
	return d
}

// Feed consumes one byte and returns the packet it completes, if any.
// The returned packet owns its payload.
func (d *Decoder) Feed(b byte) *Packet {
	if !d.rx.Feed(b) {
		return nil
	}
	pkt := &Packet{
		Address: d.rx.Address(),
		Payload: append([]byte(nil), d.rx.Data()...),
		CRC:     d.rx.CRC(),
	}
	d.rx.Begin(0, d.buf[:])
	return pkt
}

// Write implements io.Writer and dispatches every decoded packet to Handler.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		if pkt := d.Feed(b); pkt != nil && d.Handler != nil {
			d.Handler.HandlePacket(pkt)
		}
	}
	return len(p), nil
}

// Discards returns how many partial or invalid frames were dropped.
func (d *Decoder) Discards() int {
	return d.rx.Discards()
}

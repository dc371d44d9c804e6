package link

// testTransport records transport calls made by a role.
type testTransport struct {
	tx, rx, tc bool
	out        []byte
}

func (t *testTransport) PutByte(b byte)           { t.out = append(t.out, b) }
func (t *testTransport) EnableTx(en bool)         { t.tx = en }
func (t *testTransport) EnableRx(en bool)         { t.rx = en }
func (t *testTransport) EnableTxComplete(en bool) { t.tc = en }

// pump drives OnTxReady until the handler disables it and returns the bytes
// sent, then delivers the tx-complete notification if it was requested.
func (t *testTransport) pump(h EventHandler) []byte {
	for n := 0; t.tx; n++ {
		if n > MaxFrameSize {
			panic("transmitter never finished")
		}
		h.OnTxReady()
	}
	out := t.out
	t.out = nil
	if t.tc {
		h.OnTxComplete()
	}
	return out
}

// deliver feeds bytes to the handler while receive notifications are on.
func (t *testTransport) deliver(h EventHandler, bs ...byte) {
	for _, b := range bs {
		if t.rx {
			h.OnRxByte(b)
		}
	}
}

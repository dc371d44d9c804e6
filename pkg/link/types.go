package link

import "sync"

// Transport is the byte-serial channel a role drives.
// Received bytes are delivered through EventHandler.OnRxByte.
type Transport interface {
	// PutByte queues one byte for transmission.
	PutByte(b byte)
	// EnableTx turns "ready to transmit" notifications on or off.
	EnableTx(bool)
	// EnableRx turns "byte received" notifications on or off.
	EnableRx(bool)
	// EnableTxComplete turns "transmission physically complete" notifications on or off.
	EnableTxComplete(bool)
}

// EventHandler receives transport notifications.
type EventHandler interface {
	OnTxReady()
	OnRxByte(b byte)
	OnTxComplete()
}

// Timer is a one-shot countdown guard timer.
type Timer interface {
	// Arm starts counting ticks and calls expire once when they elapse.
	Arm(ticks uint32, expire func())
	// Disarm stops the timer without calling expire.
	Disarm()
}

// CountdownTimer is a software Timer advanced by explicit Tick calls.
type CountdownTimer struct {
	remaining uint32
	expire    func()
	lock      sync.Mutex
}

// Arm implements Timer.
func (t *CountdownTimer) Arm(ticks uint32, expire func()) {
	t.lock.Lock()
	t.remaining, t.expire = ticks, expire
	t.lock.Unlock()
}

// Disarm implements Timer.
func (t *CountdownTimer) Disarm() {
	t.lock.Lock()
	t.remaining, t.expire = 0, nil
	t.lock.Unlock()
}

// Armed tells whether the timer is counting.
func (t *CountdownTimer) Armed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.expire != nil
}

// Remaining returns the ticks left before expiry.
func (t *CountdownTimer) Remaining() uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.remaining
}

// Tick advances the timer by one tick. The expiry callback runs outside the
// timer lock so it may re-arm or disarm the timer.
func (t *CountdownTimer) Tick() {
	t.lock.Lock()
	fn := t.expire
	if fn == nil {
		t.lock.Unlock()
		return
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		t.lock.Unlock()
		return
	}
	t.expire = nil
	t.lock.Unlock()
	fn()
}

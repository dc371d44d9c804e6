package link

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// MasterState is the top-level status of a master exchange.
type MasterState int32

const (
	// MasterIdle means no exchange has been started yet.
	MasterIdle MasterState = iota
	// MasterError means the guard timer expired before a valid response arrived.
	MasterError
	// MasterComplete means a verified response is in the response buffer.
	MasterComplete
	// MasterBusy means an exchange is in progress.
	MasterBusy
)

// String implements fmt.Stringer.
func (s MasterState) String() string {
	switch s {
	case MasterIdle:
		return "idle"
	case MasterError:
		return "error"
	case MasterComplete:
		return "complete"
	case MasterBusy:
		return "busy"
	}
	return "unknown"
}

// IsTerminal tells whether the exchange has finished.
func (s MasterState) IsTerminal() bool {
	return s == MasterError || s == MasterComplete
}

// MasterNotifier is called after a master exchange reaches a terminal state.
type MasterNotifier interface {
	MasterStateChanged(MasterState)
}

// MasterStateChangedFunc is func type of MasterNotifier.
type MasterStateChangedFunc func(MasterState)

// MasterStateChanged implements MasterNotifier.
func (f MasterStateChangedFunc) MasterStateChanged(state MasterState) {
	f(state)
}

// DefaultTimeoutTicks is the guard time used when Init is given zero ticks.
const DefaultTimeoutTicks uint32 = 100

// Master sends one request and waits for one response at a time.
// Foreground code calls Start and polls State; the transport and the guard
// timer drive the exchange through the event handlers.
type Master struct {
	Notifier MasterNotifier

	transport    Transport
	timer        Timer
	timeoutTicks uint32

	addr byte
	tx   Transmitter
	rx   Receiver

	state   int32
	rxSize  int32
	lock    sync.Mutex
	started bool
}

// Init binds the master to a transport and a guard timer.
func (m *Master) Init(t Transport, timer Timer, timeoutTicks uint32) {
	if timeoutTicks == 0 {
		timeoutTicks = DefaultTimeoutTicks
	}
	m.lock.Lock()
	m.transport, m.timer, m.timeoutTicks = t, timer, timeoutTicks
	m.started = true
	atomic.StoreInt32(&m.rxSize, 0)
	atomic.StoreInt32(&m.state, int32(MasterIdle))
	m.lock.Unlock()
}

// State returns the current status. It never blocks.
func (m *Master) State() MasterState {
	return MasterState(atomic.LoadInt32(&m.state))
}

// DataSize returns the length of the verified response.
// It is only meaningful once State returns MasterComplete.
func (m *Master) DataSize() int {
	return int(atomic.LoadInt32(&m.rxSize))
}

// Response returns the verified response stored in the response buffer.
func (m *Master) Response() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.State() != MasterComplete {
		return nil
	}
	return m.rx.Data()
}

// Start begins an exchange with the slave at addr. It does not block.
// req and resp are owned by the caller and must stay untouched until the
// exchange reaches a terminal state.
func (m *Master) Start(addr byte, req, resp []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.started {
		panic("link: master not initialized")
	}
	if m.State() == MasterBusy {
		return ErrBusy
	}
	if !ValidPayload(req) {
		return ErrInvalidLength
	}
	if len(resp) == 0 {
		return ErrNoBuffer
	}
	m.addr = addr
	m.tx.Begin(addr, req)
	m.rx.Begin(addr, resp)
	atomic.StoreInt32(&m.rxSize, 0)
	atomic.StoreInt32(&m.state, int32(MasterBusy))
	m.timer.Arm(m.timeoutTicks, m.OnTimeout)
	m.transport.EnableRx(true)
	m.transport.EnableTx(true)
	glog.V(2).Infof("master: exchange %02x started, %d bytes", addr, len(req))
	return nil
}

// OnTxReady implements EventHandler.
func (m *Master) OnTxReady() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.State() != MasterBusy {
		m.transport.EnableTx(false)
		return
	}
	if b, ok := m.tx.Next(); ok {
		m.transport.PutByte(b)
		return
	}
	m.transport.EnableTx(false)
	m.transport.EnableTxComplete(true)
}

// OnTxComplete implements EventHandler.
func (m *Master) OnTxComplete() {
	m.lock.Lock()
	m.transport.EnableTxComplete(false)
	m.lock.Unlock()
}

// OnRxByte implements EventHandler.
func (m *Master) OnRxByte(b byte) {
	m.lock.Lock()
	if m.State() != MasterBusy || !m.rx.Feed(b) {
		m.lock.Unlock()
		return
	}
	m.timer.Disarm()
	m.transport.EnableRx(false)
	addr, n := m.addr, m.rx.Len()
	atomic.StoreInt32(&m.rxSize, int32(n))
	atomic.StoreInt32(&m.state, int32(MasterComplete))
	m.lock.Unlock()
	glog.V(2).Infof("master: exchange %02x complete, %d bytes", addr, n)
	m.notify(MasterComplete)
}

// OnTimeout is the guard timer expiry handler.
// A response completed before the expiry is handled wins over the timeout.
func (m *Master) OnTimeout() {
	m.lock.Lock()
	if m.State() != MasterBusy {
		m.lock.Unlock()
		return
	}
	m.timer.Disarm()
	m.transport.EnableTx(false)
	m.transport.EnableRx(false)
	m.transport.EnableTxComplete(false)
	atomic.StoreInt32(&m.state, int32(MasterError))
	addr := m.addr
	m.lock.Unlock()
	glog.V(2).Infof("master: exchange %02x timeout", addr)
	m.notify(MasterError)
}

func (m *Master) notify(state MasterState) {
	if n := m.Notifier; n != nil {
		n.MasterStateChanged(state)
	}
}

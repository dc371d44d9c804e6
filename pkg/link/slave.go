package link

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// SlaveState is the top-level status of a slave.
type SlaveState int32

const (
	// SlaveIdle means the slave is listening for a request.
	SlaveIdle SlaveState = iota
	// SlavePacketReady means a verified request waits for the application.
	SlavePacketReady
	// SlaveResponding means a response is being transmitted.
	SlaveResponding
)

// String implements fmt.Stringer.
func (s SlaveState) String() string {
	switch s {
	case SlaveIdle:
		return "idle"
	case SlavePacketReady:
		return "packet_ready"
	case SlaveResponding:
		return "responding"
	}
	return "unknown"
}

// SlaveNotifier is called after the slave status changes.
type SlaveNotifier interface {
	SlaveStateChanged(SlaveState)
}

// SlaveStateChangedFunc is func type of SlaveNotifier.
type SlaveStateChangedFunc func(SlaveState)

// SlaveStateChanged implements SlaveNotifier.
func (f SlaveStateChangedFunc) SlaveStateChanged(state SlaveState) {
	f(state)
}

// Slave receives requests addressed to it and sends back responses.
// While a request is pending or a response is being sent, incoming bytes are
// dropped so an unread request is never overwritten.
type Slave struct {
	Notifier SlaveNotifier

	transport Transport
	addr      byte
	buf       []byte
	tx        Transmitter
	rx        Receiver

	state  int32
	rxSize int32
	lock   sync.Mutex
}

// Init binds the slave to a transport, its address and a request buffer.
func (s *Slave) Init(t Transport, addr byte, buf []byte) error {
	if len(buf) == 0 {
		return ErrNoBuffer
	}
	s.lock.Lock()
	s.transport, s.addr, s.buf = t, addr, buf
	s.rx.Begin(addr, buf)
	atomic.StoreInt32(&s.rxSize, 0)
	atomic.StoreInt32(&s.state, int32(SlaveIdle))
	s.transport.EnableTx(false)
	s.transport.EnableTxComplete(false)
	s.transport.EnableRx(true)
	s.lock.Unlock()
	return nil
}

// Address returns the slave address.
func (s *Slave) Address() byte {
	return s.addr
}

// State returns the current status. It never blocks.
func (s *Slave) State() SlaveState {
	return SlaveState(atomic.LoadInt32(&s.state))
}

// DataSize returns the length of the pending request.
func (s *Slave) DataSize() int {
	return int(atomic.LoadInt32(&s.rxSize))
}

// Data returns a view of the pending request. The slice must not be
// modified and is only valid until Respond or Discard.
func (s *Slave) Data() []byte {
	if s.State() == SlaveIdle {
		return nil
	}
	return s.buf[:s.DataSize()]
}

// Respond starts sending resp back to the master. It does not block.
// resp is owned by the caller until the slave returns to idle.
func (s *Slave) Respond(resp []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !ValidPayload(resp) {
		return ErrInvalidLength
	}
	switch s.State() {
	case SlaveIdle:
		return ErrNoRequest
	case SlaveResponding:
		return ErrBusy
	}
	s.tx.Begin(s.addr, resp)
	atomic.StoreInt32(&s.state, int32(SlaveResponding))
	s.transport.EnableTx(true)
	return nil
}

// Discard drops the pending request without responding.
func (s *Slave) Discard() error {
	s.lock.Lock()
	if s.State() != SlavePacketReady {
		s.lock.Unlock()
		return ErrNoRequest
	}
	s.listen()
	s.lock.Unlock()
	s.notify(SlaveIdle)
	return nil
}

// OnRxByte implements EventHandler.
func (s *Slave) OnRxByte(b byte) {
	s.lock.Lock()
	if s.State() != SlaveIdle || !s.rx.Feed(b) {
		s.lock.Unlock()
		return
	}
	n := s.rx.Len()
	atomic.StoreInt32(&s.rxSize, int32(n))
	atomic.StoreInt32(&s.state, int32(SlavePacketReady))
	s.lock.Unlock()
	glog.V(2).Infof("slave %02x: request received, %d bytes", s.addr, n)
	s.notify(SlavePacketReady)
}

// OnTxReady implements EventHandler.
func (s *Slave) OnTxReady() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.State() != SlaveResponding {
		s.transport.EnableTx(false)
		return
	}
	if b, ok := s.tx.Next(); ok {
		s.transport.PutByte(b)
		return
	}
	s.transport.EnableTx(false)
	s.transport.EnableTxComplete(true)
}

// OnTxComplete implements EventHandler.
func (s *Slave) OnTxComplete() {
	s.lock.Lock()
	s.transport.EnableTxComplete(false)
	if s.State() != SlaveResponding || !s.tx.Done() {
		s.lock.Unlock()
		return
	}
	s.listen()
	s.lock.Unlock()
	glog.V(2).Infof("slave %02x: response sent", s.addr)
	s.notify(SlaveIdle)
}

func (s *Slave) listen() {
	s.rx.Begin(s.addr, s.buf)
	atomic.StoreInt32(&s.rxSize, 0)
	atomic.StoreInt32(&s.state, int32(SlaveIdle))
	s.transport.EnableRx(true)
}

func (s *Slave) notify(state SlaveState) {
	if n := s.Notifier; n != nil {
		n.SlaveStateChanged(state)
	}
}

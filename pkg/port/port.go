package port

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/classb/pkg/framework"
	"github.com/robotalks/classb/pkg/link"
)

// DefaultTickInterval is the guard timer resolution when TickInterval is zero.
const DefaultTickInterval = time.Millisecond

// ErrNoHandler is returned by Run when Handler is not set.
var ErrNoHandler = errors.New("no event handler")

// Port drives a link.EventHandler from an io.ReadWriter.
// It implements link.Transport and provides the guard timer ticked every
// TickInterval. All handler calls are made from the Run goroutine.
type Port struct {
	ReadWriter   io.ReadWriter
	Handler      link.EventHandler
	TickInterval time.Duration

	timer link.CountdownTimer

	lock   sync.Mutex
	txOn   bool
	rxOn   bool
	tcOn   bool
	txBuf  []byte
	kickCh chan struct{}
}

// New creates a Port over rw.
func New(rw io.ReadWriter) *Port {
	return &Port{ReadWriter: rw, TickInterval: DefaultTickInterval}
}

// Timer returns the guard timer driven by the port.
func (p *Port) Timer() *link.CountdownTimer {
	return &p.timer
}

// PutByte implements link.Transport.
func (p *Port) PutByte(b byte) {
	p.lock.Lock()
	p.txBuf = append(p.txBuf, b)
	p.lock.Unlock()
}

// EnableTx implements link.Transport.
func (p *Port) EnableTx(on bool) {
	p.lock.Lock()
	p.txOn = on
	ch := p.kick()
	p.lock.Unlock()
	if on {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// EnableRx implements link.Transport.
func (p *Port) EnableRx(on bool) {
	p.lock.Lock()
	p.rxOn = on
	p.lock.Unlock()
}

// EnableTxComplete implements link.Transport.
func (p *Port) EnableTxComplete(on bool) {
	p.lock.Lock()
	p.tcOn = on
	p.lock.Unlock()
}

// Run implements framework.Runnable.
// If ReadWriter is also an io.Closer, it's closed when ctx is done.
// Otherwise Run still returns on ctx done, but the reading goroutine stays
// blocked in Read until ReadWriter returns data or an error.
func (p *Port) Run(ctx context.Context) error {
	if p.Handler == nil {
		return ErrNoHandler
	}
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, func() error {
			return p.loop(ctx)
		})
	}
	return p.loop(ctx)
}

func (p *Port) loop(ctx context.Context) error {
	interval := p.TickInterval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	p.lock.Lock()
	kickCh := p.kick()
	p.lock.Unlock()

	done := make(chan struct{})
	defer close(done)
	byteCh := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go p.readLoop(byteCh, errCh, done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// transmit anything requested before the loop started.
	if err := p.serviceTx(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-byteCh:
			p.receive(chunk)
		case <-kickCh:
		case <-ticker.C:
			p.drain(byteCh)
			p.timer.Tick()
		case err := <-errCh:
			p.drain(byteCh)
			return err
		}
		if err := p.serviceTx(); err != nil {
			return err
		}
	}
}

func (p *Port) kick() chan struct{} {
	if p.kickCh == nil {
		p.kickCh = make(chan struct{}, 1)
	}
	return p.kickCh
}

func (p *Port) readLoop(byteCh chan<- []byte, errCh chan<- error, done <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		n, err := p.ReadWriter.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case byteCh <- chunk:
			case <-done:
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// drain dispatches received bytes already queued, so a response which
// arrived in time is never beaten by the guard timer.
func (p *Port) drain(byteCh <-chan []byte) {
	for {
		select {
		case chunk := <-byteCh:
			p.receive(chunk)
		default:
			return
		}
	}
}

func (p *Port) receive(chunk []byte) {
	for _, b := range chunk {
		p.lock.Lock()
		on := p.rxOn
		p.lock.Unlock()
		if !on {
			glog.V(3).Infof("rx disabled, drop %02x", b)
			continue
		}
		p.Handler.OnRxByte(b)
	}
}

func (p *Port) serviceTx() error {
	for {
		p.lock.Lock()
		on, queued := p.txOn, len(p.txBuf)
		p.lock.Unlock()
		if !on {
			break
		}
		p.Handler.OnTxReady()
		p.lock.Lock()
		stalled := p.txOn && len(p.txBuf) == queued
		p.lock.Unlock()
		if stalled {
			break
		}
	}

	p.lock.Lock()
	out := p.txBuf
	p.txBuf = nil
	tc := p.tcOn
	p.lock.Unlock()

	if len(out) > 0 {
		if _, err := p.ReadWriter.Write(out); err != nil {
			return err
		}
	}
	if tc {
		p.Handler.OnTxComplete()
	}
	return nil
}

// Package selftest provides the complement-echo probe exchanged between a
// master and a slave to check the link end to end.
package selftest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/classb/pkg/framework"
	"github.com/robotalks/classb/pkg/link"
)

// ErrMismatch indicates the probe response is not the complement of the request.
var ErrMismatch = errors.New("response mismatch")

// Handler computes the response of a request.
// An empty response discards the request.
type Handler interface {
	HandleRequest(req []byte) []byte
}

// HandlerFunc is func form of Handler.
type HandlerFunc func(req []byte) []byte

// HandleRequest implements Handler.
func (f HandlerFunc) HandleRequest(req []byte) []byte {
	return f(req)
}

// Complement returns the bitwise NOT of every byte in req.
func Complement(req []byte) []byte {
	resp := make([]byte, len(req))
	for i, b := range req {
		resp[i] = ^b
	}
	return resp
}

// Responder answers requests pending on a slave from the loop.
type Responder struct {
	Slave   *link.Slave
	Handler Handler

	served uint64
}

// NewResponder creates a Responder answering with Complement.
func NewResponder(s *link.Slave) *Responder {
	return &Responder{Slave: s, Handler: HandlerFunc(Complement)}
}

// Served returns the number of requests answered.
func (r *Responder) Served() uint64 {
	return atomic.LoadUint64(&r.served)
}

// AddToLoop implements LoopAdder.
// It takes over the slave Notifier to wake the loop once a request arrives.
func (r *Responder) AddToLoop(loop *fx.Loop) {
	r.Slave.Notifier = link.SlaveStateChangedFunc(func(state link.SlaveState) {
		if state == link.SlavePacketReady {
			loop.TriggerNext()
		}
	})
	loop.AddController(fx.PrLvNormal, r)
}

// Control implements Controller.
func (r *Responder) Control(fx.ControlContext) error {
	if r.Slave.State() != link.SlavePacketReady {
		return nil
	}
	h := r.Handler
	if h == nil {
		h = HandlerFunc(Complement)
	}
	resp := h.HandleRequest(r.Slave.Data())
	if len(resp) == 0 {
		glog.V(2).Infof("slave %02x: request discarded", r.Slave.Address())
		return r.Slave.Discard()
	}
	if err := r.Slave.Respond(resp); err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	atomic.AddUint64(&r.served, 1)
	return nil
}

// Probe sends pattern to addr and checks the complement comes back.
func Probe(ctx context.Context, c *link.Client, addr byte, pattern []byte) error {
	resp := make([]byte, link.MaxPayload)
	n, err := c.Do(ctx, addr, pattern, resp)
	if err != nil {
		return err
	}
	return Verify(pattern, resp[:n])
}

// Verify checks resp is the complement of pattern.
func Verify(pattern, resp []byte) error {
	if expected := Complement(pattern); !bytes.Equal(resp, expected) {
		return fmt.Errorf("%w: expect % x, got % x", ErrMismatch, expected, resp)
	}
	return nil
}

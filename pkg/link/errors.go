package link

import "errors"

var (
	// ErrBusy indicates an exchange or a response is already in progress.
	ErrBusy = errors.New("busy")
	// ErrInvalidLength indicates a payload outside 1..MaxPayload bytes.
	ErrInvalidLength = errors.New("invalid payload length")
	// ErrNoBuffer indicates an empty receive buffer was supplied.
	ErrNoBuffer = errors.New("no receive buffer")
	// ErrNoRequest indicates the slave has no pending request to respond to.
	ErrNoRequest = errors.New("no pending request")
	// ErrTimeout indicates no valid response arrived before the guard timer expired.
	ErrTimeout = errors.New("exchange timeout")
)

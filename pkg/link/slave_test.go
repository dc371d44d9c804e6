package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type slaveTestEnv struct {
	t         *testing.T
	transport testTransport
	slave     Slave
	states    []SlaveState
}

func newSlaveTestEnv(t *testing.T, addr byte, size int) *slaveTestEnv {
	env := &slaveTestEnv{t: t}
	require.NoError(t, env.slave.Init(&env.transport, addr, make([]byte, size)))
	env.slave.Notifier = SlaveStateChangedFunc(func(s SlaveState) {
		env.states = append(env.states, s)
	})
	return env
}

func (e *slaveTestEnv) request(addr byte, payload ...byte) {
	frame, err := AppendFrame(nil, addr, payload)
	require.NoError(e.t, err)
	e.transport.deliver(&e.slave, frame...)
}

func TestSlaveRequestResponse(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 40)
	require.True(t, env.transport.rx)
	require.Equal(t, SlaveIdle, env.slave.State())
	require.Nil(t, env.slave.Data())

	env.request(0x08, 0x07)
	require.Equal(t, SlavePacketReady, env.slave.State())
	require.Equal(t, 1, env.slave.DataSize())
	require.Equal(t, []byte{0x07}, env.slave.Data())

	require.NoError(t, env.slave.Respond([]byte{^env.slave.Data()[0]}))
	require.Equal(t, SlaveResponding, env.slave.State())
	require.True(t, env.transport.tx)
	require.Equal(t, []byte{0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87}, env.transport.pump(&env.slave))
	require.Equal(t, SlaveIdle, env.slave.State())
	require.False(t, env.transport.tc)
	require.Equal(t, []SlaveState{SlavePacketReady, SlaveIdle}, env.states)

	env.request(0x08, 0x02, 0x1b, 0x05)
	require.Equal(t, SlavePacketReady, env.slave.State())
	require.Equal(t, []byte{0x02, 0x1b, 0x05}, env.slave.Data())
}

func TestSlaveIgnoresOtherAddress(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 40)
	env.request(0x09, 0x07)
	require.Equal(t, SlaveIdle, env.slave.State())
	require.Empty(t, env.states)
}

func TestSlaveBackpressure(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 40)
	env.request(0x08, 0x01)
	require.Equal(t, SlavePacketReady, env.slave.State())

	// second request is dropped, not deferred
	env.request(0x08, 0x02)
	require.Equal(t, SlavePacketReady, env.slave.State())
	require.Equal(t, []byte{0x01}, env.slave.Data())

	require.NoError(t, env.slave.Respond([]byte{0xfe}))
	// dropped while responding too
	env.request(0x08, 0x03)
	env.transport.pump(&env.slave)
	require.Equal(t, SlaveIdle, env.slave.State())

	env.request(0x08, 0x04)
	require.Equal(t, SlavePacketReady, env.slave.State())
	require.Equal(t, []byte{0x04}, env.slave.Data())
}

func TestSlaveDiscard(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 40)
	require.Equal(t, ErrNoRequest, env.slave.Discard())
	env.request(0x08, 0x01)
	require.NoError(t, env.slave.Discard())
	require.Equal(t, SlaveIdle, env.slave.State())
	env.request(0x08, 0x02)
	require.Equal(t, []byte{0x02}, env.slave.Data())
}

func TestSlaveRejects(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 40)
	require.Equal(t, ErrNoRequest, env.slave.Respond([]byte{1}))
	env.request(0x08, 0x01)
	require.Equal(t, ErrInvalidLength, env.slave.Respond(nil))
	require.Equal(t, ErrInvalidLength, env.slave.Respond(make([]byte, MaxPayload+1)))
	require.NoError(t, env.slave.Respond([]byte{1}))
	require.Equal(t, ErrBusy, env.slave.Respond([]byte{1}))

	var s Slave
	require.Equal(t, ErrNoBuffer, s.Init(&testTransport{}, 1, nil))
}

func TestSlaveTruncatesToBuffer(t *testing.T) {
	env := newSlaveTestEnv(t, 0x08, 2)
	env.request(0x08, 1, 2, 3, 4)
	require.Equal(t, SlavePacketReady, env.slave.State())
	require.Equal(t, []byte{1, 2}, env.slave.Data())
}

func TestSlaveStateString(t *testing.T) {
	require.Equal(t, "idle", SlaveIdle.String())
	require.Equal(t, "packet_ready", SlavePacketReady.String())
	require.Equal(t, "responding", SlaveResponding.String())
}

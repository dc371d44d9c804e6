package link

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type masterTestEnv struct {
	t         *testing.T
	transport testTransport
	timer     CountdownTimer
	master    Master
	states    []MasterState
	resp      []byte
}

func newMasterTestEnv(t *testing.T, ticks uint32) *masterTestEnv {
	env := &masterTestEnv{t: t, resp: make([]byte, 8)}
	env.master.Init(&env.transport, &env.timer, ticks)
	env.master.Notifier = MasterStateChangedFunc(func(s MasterState) {
		env.states = append(env.states, s)
	})
	return env
}

func (e *masterTestEnv) start(addr byte, req ...byte) {
	require.NoError(e.t, e.master.Start(addr, req, e.resp))
	require.Equal(e.t, MasterBusy, e.master.State())
}

func (e *masterTestEnv) tick(n int) {
	for i := 0; i < n; i++ {
		e.timer.Tick()
	}
}

func TestMasterExchange(t *testing.T) {
	env := newMasterTestEnv(t, 10)
	env.start(0x08, 0x07)
	require.True(t, env.transport.tx)
	require.True(t, env.transport.rx)
	require.True(t, env.timer.Armed())
	require.Equal(t, uint32(10), env.timer.Remaining())

	require.Equal(t, []byte{0x02, 0x08, 0x01, 0x07, 0xea, 0x77}, env.transport.pump(&env.master))
	require.False(t, env.transport.tx)
	require.False(t, env.transport.tc)
	require.Equal(t, MasterBusy, env.master.State())

	env.tick(3)
	env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87)
	require.Equal(t, MasterComplete, env.master.State())
	require.Equal(t, 1, env.master.DataSize())
	require.Equal(t, []byte{0xf8}, env.master.Response())
	require.Equal(t, byte(0xf8), env.resp[0])
	require.False(t, env.timer.Armed())
	require.False(t, env.transport.rx)
	require.Equal(t, []MasterState{MasterComplete}, env.states)
}

func TestMasterTimeoutBoundary(t *testing.T) {
	env := newMasterTestEnv(t, 5)
	env.start(0x08, 0x07)
	env.transport.pump(&env.master)
	env.tick(4)
	require.Equal(t, MasterBusy, env.master.State())
	env.tick(1)
	require.Equal(t, MasterError, env.master.State())
	require.False(t, env.transport.rx)
	require.False(t, env.transport.tx)
	require.Equal(t, []MasterState{MasterError}, env.states)

	// a late valid frame does not turn an error into complete
	env.transport.rx = true
	env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87)
	require.Equal(t, MasterError, env.master.State())
	require.Equal(t, 0, env.master.DataSize())
	require.Nil(t, env.master.Response())
}

func TestMasterCompletionWins(t *testing.T) {
	env := newMasterTestEnv(t, 5)
	env.start(0x08, 0x07)
	env.transport.pump(&env.master)
	env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87)
	// expiry already queued when the frame completed
	env.master.OnTimeout()
	require.Equal(t, MasterComplete, env.master.State())
	require.Equal(t, []MasterState{MasterComplete}, env.states)
}

func TestMasterCorruptedResponseThenValid(t *testing.T) {
	env := newMasterTestEnv(t, 50)
	env.start(0x08, 0x07)
	env.transport.pump(&env.master)
	env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x88)
	require.Equal(t, MasterBusy, env.master.State())
	env.transport.deliver(&env.master, 0x02, 0x09, 0x01, 0xf8)
	require.Equal(t, MasterBusy, env.master.State())
	env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87)
	require.Equal(t, MasterComplete, env.master.State())
}

func TestMasterRejects(t *testing.T) {
	env := newMasterTestEnv(t, 5)
	require.Equal(t, MasterIdle, env.master.State())
	require.Equal(t, ErrInvalidLength, env.master.Start(0x08, nil, env.resp))
	require.Equal(t, ErrInvalidLength, env.master.Start(0x08, make([]byte, MaxPayload+1), env.resp))
	require.Equal(t, ErrNoBuffer, env.master.Start(0x08, []byte{1}, nil))
	require.Equal(t, MasterIdle, env.master.State())
	require.False(t, env.timer.Armed())

	env.start(0x08, 0x07)
	require.Equal(t, ErrBusy, env.master.Start(0x08, []byte{1}, env.resp))

	env.tick(5)
	require.Equal(t, MasterError, env.master.State())
	env.start(0x08, 0x07)
}

func TestMasterDefaultTimeout(t *testing.T) {
	env := newMasterTestEnv(t, 0)
	env.start(0x01, 0x01)
	require.Equal(t, DefaultTimeoutTicks, env.timer.Remaining())
}

func TestMasterStateString(t *testing.T) {
	require.Equal(t, "idle", MasterIdle.String())
	require.Equal(t, "error", MasterError.String())
	require.Equal(t, "complete", MasterComplete.String())
	require.Equal(t, "busy", MasterBusy.String())
	require.True(t, MasterError.IsTerminal())
	require.True(t, MasterComplete.IsTerminal())
	require.False(t, MasterBusy.IsTerminal())
	require.False(t, MasterIdle.IsTerminal())
}

func TestMasterResponseWhileRestarting(t *testing.T) {
	env := newMasterTestEnv(t, 10)
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			if resp := env.master.Response(); resp != nil && len(resp) != 1 {
				panic("unexpected response length")
			}
		}
	}()
	for i := 0; i < 50; i++ {
		env.start(0x08, 0x07)
		env.transport.pump(&env.master)
		env.transport.deliver(&env.master, 0x02, 0x08, 0x01, 0xf8, 0xf4, 0x87)
		require.Equal(t, MasterComplete, env.master.State())
	}
	close(stopCh)
	wg.Wait()
	require.Equal(t, []byte{0xf8}, env.master.Response())
}

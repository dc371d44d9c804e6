package link

import (
	"context"
	"sync"
)

// Client provides blocking exchanges on top of a Master.
// It installs itself as the master's Notifier.
type Client struct {
	master *Master
	doneCh chan MasterState
	lock   sync.Mutex
}

// NewClient creates client and wraps the master.
func NewClient(m *Master) *Client {
	c := &Client{master: m, doneCh: make(chan MasterState, 1)}
	m.Notifier = MasterStateChangedFunc(c.stateChanged)
	return c
}

// Master gets wrapped Master.
func (c *Client) Master() *Master {
	return c.master
}

// Do sends req to addr and waits for the response which is stored in resp.
// It returns the response length. If ctx is done first, ctx.Err() is
// returned and the exchange keeps running until it completes or times out.
func (c *Client) Do(ctx context.Context, addr byte, req, resp []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	select {
	case <-c.doneCh:
	default:
	}
	if err := c.master.Start(addr, req, resp); err != nil {
		return 0, err
	}
	for {
		select {
		case <-c.doneCh:
			// the notification of an abandoned exchange may arrive after Start.
			state := c.master.State()
			if state == MasterBusy {
				continue
			}
			if state != MasterComplete {
				return 0, ErrTimeout
			}
			return c.master.DataSize(), nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (c *Client) stateChanged(state MasterState) {
	select {
	case c.doneCh <- state:
	default:
	}
}

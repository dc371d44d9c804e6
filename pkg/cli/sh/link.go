package sh

import (
	"context"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/classb/pkg/config"
	"github.com/robotalks/classb/pkg/link"
	"github.com/robotalks/classb/pkg/port"
)

// MasterLink is a master role running on an opened port.
type MasterLink struct {
	Master link.Master
	Client *link.Client
	Port   *port.Port

	cancel func()
	doneCh chan struct{}
	resp   []byte
}

// DialMaster opens url and starts a master on it.
func DialMaster(url string, conf *config.Config) (*MasterLink, error) {
	conn, err := port.Open(url)
	if err != nil {
		return nil, err
	}
	return NewMasterLink(conn, conf), nil
}

// NewMasterLink starts a master on conn. conn is closed by Close.
func NewMasterLink(conn io.ReadWriteCloser, conf *config.Config) *MasterLink {
	ml := &MasterLink{
		Port:   port.New(conn),
		doneCh: make(chan struct{}),
		resp:   make([]byte, conf.BufferSize),
	}
	ml.Port.TickInterval = conf.TickInterval
	ml.Port.Handler = &ml.Master
	ml.Master.Init(ml.Port, ml.Port.Timer(), conf.TimeoutTicks)
	ml.Client = link.NewClient(&ml.Master)

	ctx, cancel := context.WithCancel(context.Background())
	ml.cancel = cancel
	go func() {
		defer close(ml.doneCh)
		if err := ml.Port.Run(ctx); err != nil && err != context.Canceled {
			glog.Errorf("link stopped: %v", err)
		}
	}()
	return ml
}

// Exchange sends req to addr and returns a copy of the response.
func (ml *MasterLink) Exchange(ctx context.Context, addr byte, req []byte) ([]byte, error) {
	n, err := ml.Client.Do(ctx, addr, req, ml.resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), ml.resp[:n]...), nil
}

// Close stops the master and closes the port.
func (ml *MasterLink) Close() error {
	ml.cancel()
	<-ml.doneCh
	return nil
}

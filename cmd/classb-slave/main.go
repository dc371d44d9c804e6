package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/classb/pkg/config"
	fx "github.com/robotalks/classb/pkg/framework"
	"github.com/robotalks/classb/pkg/link"
	"github.com/robotalks/classb/pkg/port"
	"github.com/robotalks/classb/pkg/selftest"
)

func init() {
	config.SetupFlags(flag.CommandLine)
}

func main() {
	flag.Parse()
	conf := config.MustLoad()

	conn, err := port.Open(conf.Port)
	if err != nil {
		glog.Exit(err)
	}
	p := port.New(conn)
	p.TickInterval = conf.TickInterval

	var slave link.Slave
	p.Handler = &slave
	if err := slave.Init(p, conf.Address, make([]byte, conf.BufferSize)); err != nil {
		glog.Exit(err)
	}
	glog.Infof("slave %02x listening on %s", conf.Address, conf.Port)

	fx.NewLoop().
		Add(selftest.NewResponder(&slave)).
		AddRunnable(p).
		RunOrFail()
}

package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/classb/pkg/config"
	fx "github.com/robotalks/classb/pkg/framework"
	"github.com/robotalks/classb/pkg/monitor"
	"github.com/robotalks/classb/pkg/port"
)

var (
	follow  bool
	offline bool
)

func init() {
	config.SetupFlags(flag.CommandLine)
	flag.BoolVar(&follow, "follow", follow, "Print frames published by all monitors instead of sniffing a port.")
	flag.BoolVar(&offline, "offline", offline, "Sniff and print frames without publishing.")
}

func printRecord(node string, rec *monitor.FrameRecord) {
	fmt.Printf("%s %s %02x % x crc=%04x\n",
		rec.Time().Format("15:04:05.000000"), node, rec.Address, rec.Payload, rec.Crc)
}

func main() {
	flag.Parse()
	conf := config.MustLoad()

	var q *monitor.Queue
	if follow || !offline {
		var err error
		if q, err = monitor.NewQueueFromURL(conf.MQTTURL); err != nil {
			glog.Exit(err)
		}
		if err := q.Connect(); err != nil {
			glog.Exitf("connect %s: %v", conf.MQTTURL, err)
		}
		defer q.Close()
	}

	runner := fx.NewRunner().HandleSignals()
	if follow {
		sub := monitor.Follow(q, printRecord)
		defer sub.Close()
		<-runner.Context.Done()
		return
	}

	conn, err := port.Open(conf.Port)
	if err != nil {
		glog.Exit(err)
	}
	m := monitor.New(conn, nil, conf.NodeID)
	if q != nil {
		m.Publisher = q
	}
	m.OnFrame = func(rec *monitor.FrameRecord) {
		printRecord(conf.NodeID, rec)
	}
	glog.Infof("monitoring %s as %s", conf.Port, conf.NodeID)
	if err := runner.Go(m).Wait(); err != nil {
		glog.Error(err)
	}
	glog.Infof("%d frames, %d discarded, %d publish errors", m.Frames(), m.Discards(), m.PublishErrors())
}

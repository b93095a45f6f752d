package main

import (
	"flag"
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/bridge.go/pkg/bridge"
	"github.com/robotalks/bridge.go/pkg/env"
	fx "github.com/robotalks/bridge.go/pkg/framework"
	"github.com/robotalks/bridge.go/pkg/telemetry/mqtt"
	"github.com/robotalks/bridge.go/pkg/trace"
)

func init() {
	bridge.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := bridge.MustNewConfig()
	conf.NodeID = env.NodeID(conf.NodeID)

	transceiver, closeBus, err := conf.OpenBus()
	if err != nil {
		log.Fatalln(err)
	}
	defer closeBus()
	if conf.EmulateBus {
		glog.Warning("controller board emulated, telemetry is all zeroes")
	}

	link, err := conf.NewLink()
	if err != nil {
		log.Fatalln(err)
	}
	defer link.Close()

	var traceOut io.Writer
	if conf.TraceSerial != "" {
		port, err := trace.OpenSerial(conf.TraceSerial, conf.TraceBaud)
		if err != nil {
			log.Fatalln(err)
		}
		defer port.Close()
		traceOut = port
	}

	loop := fx.NewLoop()
	loop.MinPeriod = bridge.MinPeriod
	loop.Add(conf.NewBridge(link, transceiver), trace.New(traceOut))
	if conf.MQTTURL != "" {
		mirror, err := mqtt.NewMirror(conf.MQTTURL, conf.NodeID, conf.PeerURL)
		if err != nil {
			log.Fatalln(err)
		}
		loop.Add(mirror)
	}

	glog.Infof("bridge %s: operator %s", conf.NodeID, conf.PeerURL)
	loop.RunOrFail()
}

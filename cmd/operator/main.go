package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/bridge.go/pkg/bridge"
	"github.com/robotalks/bridge.go/pkg/operator"
)

var (
	listenAddr = ":60000"
	follow     bool
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address accepting the bridge node.")
	flag.BoolVar(&follow, "follow", follow, "Print every telemetry frame.")
	operator.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	server, err := operator.Listen(listenAddr)
	if err != nil {
		log.Fatalln(err)
	}
	sh := operator.NewShell(server)
	if follow {
		server.OnTelemetry = func(tlm bridge.Telemetry) {
			sh.Shell.Println(operator.FormatValues(tlm[:]))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := server.Run(ctx); err != nil && err != context.Canceled {
			log.Fatalln(err)
		}
	}()
	sh.Run(flag.Args()...)
	cancel()
}

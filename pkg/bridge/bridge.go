package bridge

import (
	"github.com/golang/glog"

	"github.com/robotalks/bridge.go/pkg/bus"
	"github.com/robotalks/bridge.go/pkg/codec"
	fx "github.com/robotalks/bridge.go/pkg/framework"
)

// Bridge forwards commands from the operator to the controller board
// and telemetry back, once per loop iteration.
type Bridge struct {
	Link Session
	Bus  bus.Transceiver
	// Lenient selects the forgiving decoder for command frames.
	Lenient bool

	report Report
}

// New creates a Bridge.
func New(link Session, transceiver bus.Transceiver) *Bridge {
	return &Bridge{Link: link, Bus: transceiver}
}

// AddToLoop implements fx.LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, b)
}

// Control implements fx.Controller. It reconnects the operator if
// needed, forwards a received command on the bus and sends telemetry
// back if the controller board has any.
func (b *Bridge) Control(cc fx.ControlContext) error {
	r := &b.report
	r.reset(cc.Time(), cc.Iteration())

	if err := b.Link.EnsureConnected(cc.Context()); err != nil {
		if cc.Context().Err() != nil {
			return nil
		}
		return err
	}
	r.LinkState = b.Link.State()

	var out []uint16
	if b.Link.Receive(r.Frame[:]) {
		r.WirelessIn = true
		if err := b.decode(r); err != nil {
			r.DecodeErr = err
			glog.Warningf("command frame dropped: %v", err)
		} else {
			r.CommandValid = true
			out = r.Command[:]
		}
	}

	r.Steps = bus.Steps(len(out), NIn)
	present, err := bus.Transact(b.Bus, out, r.Telemetry[:])
	if err != nil {
		r.BusErr = err
		glog.Errorf("bus transaction: %v", err)
	}
	if present {
		r.BusIn = true
		codec.Encode(r.OutFrame[:], r.Telemetry[:])
		r.Sent = b.Link.Send(r.OutFrame[:])
	}
	r.LinkState = b.Link.State()

	cc.Messages().AddMessages(r)
	return nil
}

func (b *Bridge) decode(r *Report) error {
	if b.Lenient {
		codec.DecodeLenient(r.Command[:], r.Frame[:])
		return nil
	}
	return codec.Decode(r.Command[:], r.Frame[:])
}

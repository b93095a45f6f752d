package trace

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/robotalks/bridge.go/pkg/bridge"
	fx "github.com/robotalks/bridge.go/pkg/framework"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

// Verbosity is the glog level of wire traces.
const Verbosity = 2

// DefaultBaud is the baud rate of the serial trace port.
const DefaultBaud = 9600

// Tracer writes wire traces of every bridge iteration.
type Tracer struct {
	// Output receives traces in addition to glog, may be nil.
	Output io.Writer

	buf       bytes.Buffer
	linkState wireless.State
	outputErr bool
}

// New creates a Tracer.
func New(output io.Writer) *Tracer {
	return &Tracer{Output: output}
}

// OpenSerial opens a serial port for traces.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// AddToLoop implements fx.LoopAdder.
func (t *Tracer) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, t)
}

// Control implements fx.Controller.
func (t *Tracer) Control(cc fx.ControlContext) error {
	if !glog.V(Verbosity) && t.Output == nil {
		return nil
	}
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if r, ok := mc.CurrentMessage().(*bridge.Report); ok {
			t.buf.Reset()
			t.Format(&t.buf, r, cc.LastPeriod())
			t.emit()
		}
	}))
	return nil
}

// Format writes the traces of an iteration, one line per event.
func (t *Tracer) Format(w *bytes.Buffer, r *bridge.Report, lastPeriod time.Duration) {
	if r.LinkState != t.linkState {
		fmt.Fprintf(w, "Link: %s\n", r.LinkState)
		t.linkState = r.LinkState
	}
	if r.WirelessIn {
		w.WriteString("Wifi in: ")
		w.Write(r.Frame[:])
		w.WriteByte('\n')
	}
	if r.DecodeErr != nil {
		fmt.Fprintf(w, "Wifi in dropped: %v\n", r.DecodeErr)
	}
	w.WriteString("SPI out: ")
	if r.CommandValid {
		writeValues(w, r.Command[:])
	}
	w.WriteString("\nSPI in: ")
	if r.BusIn {
		writeValues(w, r.Telemetry[:])
	}
	w.WriteByte('\n')
	if r.BusErr != nil {
		fmt.Fprintf(w, "SPI error: %v\n", r.BusErr)
	}
	if r.Sent {
		w.WriteString("Wifi out: ")
		w.Write(r.OutFrame[:])
		w.WriteByte('\n')
	}
	if lastPeriod > 0 {
		fmt.Fprintf(w, "Iteration: %d ms\n", lastPeriod.Milliseconds())
	}
}

func writeValues(w *bytes.Buffer, values []uint16) {
	var num [8]byte
	for _, v := range values {
		w.Write(strconv.AppendUint(num[:0], uint64(v), 10))
		w.WriteString(", ")
	}
}

func (t *Tracer) emit() {
	if glog.V(Verbosity) {
		for _, line := range bytes.Split(bytes.TrimSuffix(t.buf.Bytes(), []byte{'\n'}), []byte{'\n'}) {
			glog.Info(string(line))
		}
	}
	if t.Output == nil {
		return
	}
	if _, err := t.Output.Write(t.buf.Bytes()); err != nil {
		if !t.outputErr {
			glog.Warningf("trace output: %v", err)
		}
		t.outputErr = true
		return
	}
	t.outputErr = false
}

package bridge

import (
	"time"

	"github.com/robotalks/bridge.go/pkg/wireless"
)

// Report describes what happened in one iteration. The Bridge adds it
// to the iteration messages for post-processing controllers. It is
// reused across iterations and must not be retained.
type Report struct {
	Time      time.Time
	Iteration uint64
	LinkState wireless.State

	// WirelessIn indicates a complete frame was received. Frame holds
	// the raw bytes.
	WirelessIn bool
	Frame      InFrame
	// CommandValid indicates Command was decoded from Frame and sent
	// on the bus.
	CommandValid bool
	Command      Command
	DecodeErr    error

	// Steps is the number of bus elements exchanged.
	Steps int
	// BusIn indicates the controller board sent Telemetry.
	BusIn     bool
	Telemetry Telemetry
	BusErr    error

	// Sent indicates OutFrame was written to the operator.
	Sent     bool
	OutFrame OutFrame
}

func (r *Report) reset(t time.Time, seq uint64) {
	*r = Report{Time: t, Iteration: seq}
}

package bridge

import (
	"context"
	"time"

	"github.com/robotalks/bridge.go/pkg/codec"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

// Message layout, fixed at build time and shared with the controller
// board firmware and the operator application.
const (
	// NOut is the number of command values sent to the controller board.
	NOut = 5
	// NIn is the number of telemetry values read from the controller board.
	NIn = 10
	// InFrameLen is the size of a command frame from the operator.
	InFrameLen = NOut * codec.FieldWidth
	// OutFrameLen is the size of a telemetry frame to the operator.
	OutFrameLen = NIn * codec.FieldWidth
	// MinPeriod is the minimum duration of an iteration, so the bus is
	// not saturated.
	MinPeriod = 50 * time.Millisecond
)

// Command is the message to the controller board.
type Command [NOut]uint16

// Telemetry is the message from the controller board.
type Telemetry [NIn]uint16

// InFrame is the wire form of a Command.
type InFrame [InFrameLen]byte

// OutFrame is the wire form of Telemetry.
type OutFrame [OutFrameLen]byte

// Session is the wireless link to the operator as used by the Bridge.
// *wireless.Link implements it.
type Session interface {
	EnsureConnected(ctx context.Context) error
	Send(frame []byte) bool
	Receive(buf []byte) bool
	State() wireless.State
}

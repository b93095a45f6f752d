package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bridge.go/pkg/bus"
	"github.com/robotalks/bridge.go/pkg/codec"
	fx "github.com/robotalks/bridge.go/pkg/framework"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

type fakeSession struct {
	inbound  []string
	sent     []string
	ensured  int
	ensureFn func(ctx context.Context) error
	offline  bool
}

func (s *fakeSession) EnsureConnected(ctx context.Context) error {
	s.ensured++
	if s.ensureFn != nil {
		return s.ensureFn(ctx)
	}
	return nil
}

func (s *fakeSession) Send(frame []byte) bool {
	if s.offline {
		return false
	}
	s.sent = append(s.sent, string(frame))
	return true
}

func (s *fakeSession) Receive(buf []byte) bool {
	if len(s.inbound) == 0 {
		return false
	}
	copy(buf, s.inbound[0])
	s.inbound = s.inbound[1:]
	return true
}

func (s *fakeSession) State() wireless.State {
	if s.offline {
		return wireless.StateDisconnected
	}
	return wireless.StateConnected
}

// boardPeer emulates the controller board: it replies reply[i] at
// step i of every transaction and records the words it receives.
type boardPeer struct {
	reply []uint16
	steps int
	sent  [][]uint16
	fail  bool
}

func (p *boardPeer) Transfer16(w uint16) (uint16, error) {
	if p.fail {
		return 0, errors.New("bus fault")
	}
	if p.steps == 0 {
		p.sent = append(p.sent, nil)
	}
	cur := len(p.sent) - 1
	p.sent[cur] = append(p.sent[cur], w)
	var r uint16
	if p.steps < len(p.reply) {
		r = p.reply[p.steps]
	}
	p.steps++
	if p.steps == NIn+1 {
		p.steps = 0
	}
	return r, nil
}

func telemetryPeer() *boardPeer {
	reply := make([]uint16, NIn+1)
	for i := 0; i < NIn; i++ {
		reply[i] = uint16(i)
	}
	reply[NIn] = bus.Sentinel
	return &boardPeer{reply: reply}
}

type bridgeTestEnv struct {
	session *fakeSession
	peer    *boardPeer
	bridge  *Bridge
	loop    *fx.Loop
	reports []Report
}

func newBridgeTestEnv(peer *boardPeer) *bridgeTestEnv {
	env := &bridgeTestEnv{session: &fakeSession{}, peer: peer}
	env.bridge = New(env.session, peer)
	env.loop = &fx.Loop{MinPeriod: MinPeriod}
	env.loop.Add(env.bridge)
	env.loop.AddController(fx.PrLvPostProc, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
			if r, ok := mc.CurrentMessage().(*Report); ok {
				env.reports = append(env.reports, *r)
			}
		}))
		return nil
	}))
	return env
}

func (e *bridgeTestEnv) iterate(t *testing.T) *Report {
	start := time.Now()
	require.NoError(t, e.loop.Iterate(context.Background()))
	require.True(t, time.Since(start) >= MinPeriod)
	require.NotEmpty(t, e.reports)
	return &e.reports[len(e.reports)-1]
}

func TestCommandAndTelemetry(t *testing.T) {
	env := newBridgeTestEnv(telemetryPeer())
	env.session.inbound = []string{strings.Repeat("00001", NOut)}
	r := env.iterate(t)

	require.Equal(t, 1, env.session.ensured)
	require.Equal(t, [][]uint16{{1, 1, 1, 1, 1, bus.Sentinel, 0, 0, 0, 0, 0}}, env.peer.sent)
	require.Equal(t, []string{"00000000010000200003000040000500006000070000800009"}, env.session.sent)

	require.True(t, r.WirelessIn)
	require.True(t, r.CommandValid)
	require.Equal(t, Command{1, 1, 1, 1, 1}, r.Command)
	require.Equal(t, NIn+1, r.Steps)
	require.True(t, r.BusIn)
	require.Equal(t, Telemetry{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, r.Telemetry)
	require.True(t, r.Sent)
	require.Equal(t, wireless.StateConnected, r.LinkState)
	require.NoError(t, r.DecodeErr)
	require.NoError(t, r.BusErr)
}

func TestNoCommandSilentBoard(t *testing.T) {
	env := newBridgeTestEnv(&boardPeer{})
	r := env.iterate(t)

	require.Equal(t, [][]uint16{make([]uint16, NIn+1)}, env.peer.sent)
	require.Empty(t, env.session.sent)
	require.False(t, r.WirelessIn)
	require.False(t, r.CommandValid)
	require.Equal(t, NIn+1, r.Steps)
	require.False(t, r.BusIn)
	require.False(t, r.Sent)
}

func TestNoCommandTelemetryOnly(t *testing.T) {
	env := newBridgeTestEnv(telemetryPeer())
	r := env.iterate(t)

	require.Equal(t, [][]uint16{make([]uint16, NIn+1)}, env.peer.sent)
	require.True(t, r.BusIn)
	require.Equal(t, []string{"00000000010000200003000040000500006000070000800009"}, env.session.sent)
}

func TestMalformedCommand(t *testing.T) {
	testCases := []struct {
		name     string
		lenient  bool
		busOut   []uint16
		valid    bool
		errField int
	}{
		{"strict", false, make([]uint16, NIn+1), false, 2},
		{"lenient", true, []uint16{1, 2, 0, 4, 5, bus.Sentinel, 0, 0, 0, 0, 0}, true, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newBridgeTestEnv(telemetryPeer())
			env.bridge.Lenient = tc.lenient
			env.session.inbound = []string{"0000100002abcde0000400005"}
			r := env.iterate(t)

			require.True(t, r.WirelessIn)
			require.Equal(t, "0000100002abcde0000400005", string(r.Frame[:]))
			require.Equal(t, tc.valid, r.CommandValid)
			require.Equal(t, [][]uint16{tc.busOut}, env.peer.sent)
			if tc.errField < 0 {
				require.NoError(t, r.DecodeErr)
			} else {
				var fieldErr *codec.FieldError
				require.True(t, errors.As(r.DecodeErr, &fieldErr))
				require.Equal(t, tc.errField, fieldErr.Index)
			}
			// telemetry still flows back.
			require.True(t, r.Sent)
		})
	}
}

func TestBusFault(t *testing.T) {
	env := newBridgeTestEnv(&boardPeer{fail: true})
	env.session.inbound = []string{strings.Repeat("00001", NOut)}
	r := env.iterate(t)

	require.Error(t, r.BusErr)
	require.False(t, r.BusIn)
	require.False(t, r.Sent)
	require.Empty(t, env.session.sent)
}

func TestSendWhileDisconnected(t *testing.T) {
	env := newBridgeTestEnv(telemetryPeer())
	env.session.offline = true
	r := env.iterate(t)

	require.True(t, r.BusIn)
	require.False(t, r.Sent)
	require.Equal(t, wireless.StateDisconnected, r.LinkState)
}

func TestIterationsIndependent(t *testing.T) {
	env := newBridgeTestEnv(telemetryPeer())
	env.session.inbound = []string{strings.Repeat("00007", NOut)}
	env.iterate(t)
	r := env.iterate(t)

	require.Equal(t, 2, env.session.ensured)
	require.Len(t, env.peer.sent, 2)
	require.Equal(t, make([]uint16, NIn+1), env.peer.sent[1])
	require.False(t, r.WirelessIn)
	require.Equal(t, Command{}, r.Command)
	require.Equal(t, uint64(1), r.Iteration)
	require.Len(t, env.reports, 2)
}

func TestEnsureConnectedCanceled(t *testing.T) {
	env := newBridgeTestEnv(telemetryPeer())
	env.session.ensureFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, env.loop.Iterate(ctx))
	require.Empty(t, env.peer.sent)
	require.Empty(t, env.reports)
}

func TestEmulatedBus(t *testing.T) {
	conf := *Default()
	conf.EmulateBus = true
	transceiver, closeBus, err := conf.OpenBus()
	require.NoError(t, err)
	defer closeBus()

	session := &fakeSession{inbound: []string{strings.Repeat("00042", NOut)}}
	b := conf.NewBridge(session, transceiver)
	loop := (&fx.Loop{MinPeriod: time.Millisecond}).Add(b)
	require.NoError(t, loop.Iterate(context.Background()))
	require.Equal(t, []string{strings.Repeat("00000", NIn)}, session.sent)
	require.Equal(t, []uint16{42, 42, 42, 42, 42}, transceiver.(*bus.Loopback).Received)
}

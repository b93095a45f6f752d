package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bridge.go/pkg/bridge"
	"github.com/robotalks/bridge.go/pkg/codec"
	fx "github.com/robotalks/bridge.go/pkg/framework"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

func TestFormat(t *testing.T) {
	full := &bridge.Report{
		LinkState:    wireless.StateConnected,
		WirelessIn:   true,
		CommandValid: true,
		Command:      bridge.Command{1, 2, 3, 4, 5},
		BusIn:        true,
		Telemetry:    bridge.Telemetry{0, 1, 2, 3, 4, 5, 6, 7, 8, 65535},
		Sent:         true,
	}
	copy(full.Frame[:], "0000100002000030000400005")
	copy(full.OutFrame[:], "00000000010000200003000040000500006000070000865535")

	testCases := []struct {
		name   string
		report *bridge.Report
		last   time.Duration
		expect string
	}{
		{
			"full iteration", full, 51 * time.Millisecond,
			"Link: connected\n" +
				"Wifi in: 0000100002000030000400005\n" +
				"SPI out: 1, 2, 3, 4, 5, \n" +
				"SPI in: 0, 1, 2, 3, 4, 5, 6, 7, 8, 65535, \n" +
				"Wifi out: 00000000010000200003000040000500006000070000865535\n" +
				"Iteration: 51 ms\n",
		},
		{
			"idle", &bridge.Report{}, 0,
			"SPI out: \nSPI in: \n",
		},
		{
			"errors", &bridge.Report{
				DecodeErr: &codec.FieldError{Index: 1, Field: [5]byte{'a', 'b', 'c', 'd', 'e'}},
				BusErr:    errors.New("bus fault"),
			}, 0,
			"Wifi in dropped: field 1: invalid decimal \"abcde\"\n" +
				"SPI out: \nSPI in: \n" +
				"SPI error: bus fault\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(nil).Format(&buf, tc.report, tc.last)
			require.Equal(t, tc.expect, buf.String())
		})
	}
}

func TestFormatLinkChangesOnly(t *testing.T) {
	tracer := New(nil)
	var buf bytes.Buffer
	r := &bridge.Report{LinkState: wireless.StateConnected}
	tracer.Format(&buf, r, 0)
	require.Contains(t, buf.String(), "Link: connected")
	buf.Reset()
	tracer.Format(&buf, r, 0)
	require.NotContains(t, buf.String(), "Link:")
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("port closed")
}

func TestTracerOutput(t *testing.T) {
	var out bytes.Buffer
	tracer := New(&out)
	loop := &fx.Loop{MinPeriod: time.Millisecond}
	loop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		r := &bridge.Report{BusIn: true}
		cc.Messages().AddMessages(r)
		return nil
	}))
	loop.Add(tracer)
	require.NoError(t, loop.Iterate(context.Background()))
	require.Equal(t, "SPI out: \nSPI in: 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, \n", out.String())

	failing := &failingWriter{}
	tracer.Output = failing
	require.NoError(t, loop.Iterate(context.Background()))
	require.NoError(t, loop.Iterate(context.Background()))
	require.Equal(t, 2, failing.writes)
}
